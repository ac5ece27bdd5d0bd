package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"santa-tracker-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Reply classifications of an inbound text
const (
	ReplySkip         = "SKIP"
	ReplyNotHome      = "NOT_HOME"
	ReplyCancel       = "CANCEL"
	ReplyUnrecognized = "UNRECOGNIZED"
)

// AckXML is the empty acknowledgment returned to the SMS provider
const AckXML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

const pushTimeout = 30 * time.Second

// ClassifyReply maps a reply body to the first keyword it contains
func ClassifyReply(body string) string {
	upper := strings.ToUpper(strings.TrimSpace(body))
	switch {
	case strings.Contains(upper, "SKIP"):
		return ReplySkip
	case strings.Contains(upper, "NOT HOME"), strings.Contains(upper, "NOTHOME"):
		return ReplyNotHome
	case strings.Contains(upper, "CANCEL"):
		return ReplyCancel
	}
	return ReplyUnrecognized
}

// InboundResult describes the visit an inbound text changed
type InboundResult struct {
	Visit          *models.Visit `json:"visit"`
	Classification string        `json:"classification"`
}

// InboundService turns family text replies into visit updates
type InboundService struct {
	visits *VisitService
	guides GuideStore
	pusher Pusher
}

// NewInboundService creates a new inbound service
func NewInboundService(visits *VisitService, guides GuideStore, pusher Pusher) *InboundService {
	return &InboundService{
		visits: visits,
		guides: guides,
		pusher: pusher,
	}
}

// HandleInbound applies a reply from a family phone. Any reply skips the
// family's earliest open visit. It returns nil when the phone belongs to no
// opted-in family or the family has nothing left to skip.
func (s *InboundService) HandleInbound(ctx context.Context, from, body string) (*InboundResult, error) {
	phone, err := NormalizePhone(from)
	if err != nil {
		log.Info().Str("from", from).Msg("Ignoring SMS from unparseable number")
		return nil, nil
	}

	family, err := s.visits.families.FindOptedInByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if family == nil {
		log.Info().Str("phone", phone).Msg("No opted-in family for SMS sender")
		return nil, nil
	}

	open, err := s.visits.visits.EarliestOpenForFamily(ctx, family.ID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		log.Info().Str("family_id", family.ID).Msg("No open visit for SMS sender")
		return nil, nil
	}

	classification := ClassifyReply(body)
	visit, err := s.visits.applyReply(ctx, open.ID, body, classification)
	if err != nil || visit == nil {
		return nil, err
	}

	s.notifyGuide(visit, family, classification)

	return &InboundResult{Visit: visit, Classification: classification}, nil
}

func (s *InboundService) notifyGuide(visit *models.Visit, family *models.Family, classification string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()

		tour, err := s.visits.tours.GetByID(ctx, visit.TourID)
		if err != nil {
			log.Warn().Err(err).Str("tour_id", visit.TourID).Msg("Failed to load tour for push")
			return
		}
		guide, err := s.guides.GetByID(ctx, tour.GuideID)
		if err != nil {
			log.Warn().Err(err).Str("guide_id", tour.GuideID).Msg("Failed to load guide for push")
			return
		}
		if guide.PushToken == nil || *guide.PushToken == "" {
			return
		}

		title := "Visit skipped"
		body := fmt.Sprintf("The %s family replied: %s", family.FamilyName, classification)
		if err := s.pusher.Push(ctx, *guide.PushToken, title, body); err != nil {
			log.Warn().Err(err).Str("guide_id", guide.ID).Msg("Failed to push skip notice")
		}
	}()
}

// applyReply marks an open visit SKIPPED with the reply text. It returns nil
// when the visit was closed in the meantime.
func (s *VisitService) applyReply(ctx context.Context, visitID, body, classification string) (*models.Visit, error) {
	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(visit.TourID)
	defer unlock()

	visit, err = s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.Status != models.VisitPending && visit.Status != models.VisitOnWay {
		return nil, nil
	}

	now := s.now()
	visit.Status = models.VisitSkipped
	visit.SMSResponse = &body
	visit.SMSResponseAt = &now

	if err := s.visits.Update(ctx, visit); err != nil {
		return nil, fmt.Errorf("failed to skip visit: %w", err)
	}
	s.attachFamily(ctx, visit)

	s.emitVisitUpdated(visit.TourID, &VisitUpdate{Visit: visit}, SourceSMS, classification)

	log.Info().
		Str("tour_id", visit.TourID).
		Str("visit_id", visit.ID).
		Str("classification", classification).
		Msg("Visit skipped by SMS reply")

	return visit, nil
}
