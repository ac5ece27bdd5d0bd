package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/rs/zerolog/log"
)

// ErrSMSDisabled is returned by a gateway that has no SNS client configured
var ErrSMSDisabled = errors.New("sms gateway disabled")

// SMSSender delivers a text message to a phone number
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// SMSGateway sends text messages through Amazon SNS
type SMSGateway struct {
	client   *sns.Client
	senderID string
	enabled  bool
}

// NewSMSGateway creates an SNS backed gateway. The endpoint override is
// meant for local SNS emulators.
func NewSMSGateway(awsCfg aws.Config, endpoint, senderID string) *SMSGateway {
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	log.Info().Str("region", awsCfg.Region).Msg("SMS gateway enabled")

	return &SMSGateway{
		client:   client,
		senderID: senderID,
		enabled:  true,
	}
}

// NewDisabledSMSGateway creates a gateway that logs and refuses every message
func NewDisabledSMSGateway() *SMSGateway {
	log.Info().Msg("SMS gateway disabled: sms.enabled is false")
	return &SMSGateway{}
}

// IsEnabled returns whether messages are actually sent
func (g *SMSGateway) IsEnabled() bool {
	return g.enabled
}

// Send publishes a transactional SMS to the phone number
func (g *SMSGateway) Send(ctx context.Context, phone, message string) error {
	if !g.enabled {
		log.Debug().Str("phone", phone).Msg("Skipping SMS send (gateway disabled)")
		return ErrSMSDisabled
	}

	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if g.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(g.senderID),
		}
	}

	out, err := g.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("failed to publish SMS: %w", err)
	}

	log.Info().
		Str("phone", phone).
		Str("message_id", aws.ToString(out.MessageId)).
		Msg("SMS sent")

	return nil
}
