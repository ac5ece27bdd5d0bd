package services

import (
	"context"
	"fmt"
	"time"

	"santa-tracker-backend/internal/models"

	"github.com/rs/zerolog/log"
)

const notifyTimeout = 2 * time.Minute

// TourStartMessage is the text sent to every opted-in family when a tour starts
func TourStartMessage(tourName, inviteCode, appURL string) string {
	trackerURL := fmt.Sprintf("%s/tour/%s/signup", appURL, inviteCode)
	return fmt.Sprintf("🎅The %s has started! Santa is beginning his route now. "+
		"We'll text you again when your home is next in line. "+
		"Follow along on the Santa Tracker: %s", tourName, trackerURL)
}

// OnDeckMessage is the text sent to the family that is next in line
func OnDeckMessage(eta time.Duration) string {
	return "🎅 You're next! Santa is headed your way. ETA: " + FormatETA(eta)
}

// Notifier texts families about tour progress. Sends run in the background,
// failures are logged and never reach the caller.
type Notifier struct {
	families FamilyStore
	sms      SMSSender
	appURL   string
}

// NewNotifier creates a new notifier
func NewNotifier(families FamilyStore, sms SMSSender, appURL string) *Notifier {
	return &Notifier{
		families: families,
		sms:      sms,
		appURL:   appURL,
	}
}

// TourStarted texts the opted-in families of the tour in the background
func (n *Notifier) TourStarted(tour *models.Tour) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		n.SendTourStart(ctx, tour)
	}()
}

// OnDeck texts the family that is next in line in the background
func (n *Notifier) OnDeck(tour *models.Tour, family *models.Family, eta time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		n.SendOnDeck(ctx, family, eta)
	}()
}

// SendTourStart texts every phone of every opted-in family and returns the
// number of messages sent.
func (n *Notifier) SendTourStart(ctx context.Context, tour *models.Tour) int {
	families, err := n.families.ListOptedIn(ctx, tour.ID)
	if err != nil {
		log.Error().Err(err).Str("tour_id", tour.ID).Msg("Failed to list opted-in families")
		return 0
	}

	message := TourStartMessage(tour.Name, tour.InviteCode, n.appURL)
	sent := 0
	for _, family := range families {
		sent += n.sendAll(ctx, family, message)
	}

	log.Info().Str("tour_id", tour.ID).Int("sent", sent).Msg("Tour start messages sent")
	return sent
}

// SendOnDeck texts the family that it is next and reports whether any message went out
func (n *Notifier) SendOnDeck(ctx context.Context, family *models.Family, eta time.Duration) bool {
	if !family.SMSOptIn {
		return false
	}
	sent := n.sendAll(ctx, family, OnDeckMessage(eta)) > 0
	if sent {
		log.Info().Str("family_id", family.ID).Msg("On-deck message sent")
	}
	return sent
}

func (n *Notifier) sendAll(ctx context.Context, family *models.Family, message string) int {
	sent := 0
	for _, phone := range family.Phones() {
		if err := n.sms.Send(ctx, phone, message); err != nil {
			log.Warn().Err(err).Str("family_id", family.ID).Msg("Failed to send SMS")
			continue
		}
		sent++
	}
	return sent
}
