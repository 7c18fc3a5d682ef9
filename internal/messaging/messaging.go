// Package messaging composes payment reminder messages for credit customers
// and builds the WhatsApp deep links that deliver them. Sending is always a
// manual operator action; nothing here dispatches a message on its own.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/ttacon/libphonenumber"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/translation"
)

// DefaultRegion is the phone parsing region used when the deployment does
// not configure one.
const DefaultRegion = "PK"

var (
	ErrNoPhone      = errors.New("customer has no phone number")
	ErrEmptyMessage = errors.New("message is empty")
)

// reminderBody is the standing dues reminder. The signature line is
// appended separately because the degraded path drops it.
const reminderBody = "محترم %s،\n\nآپ کا بقایا PKR %s ہے۔ براہ کرم جلد از جلد ادائیگی کر دیں۔\n\nآپ کا شکریہ"

type Composer struct {
	translator  translation.Translator
	transcriber translation.Transcriber
	log         *logrus.Logger
	region      string
}

func NewComposer(translator translation.Translator, transcriber translation.Transcriber, log *logrus.Logger, region string) *Composer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if strings.TrimSpace(region) == "" {
		region = DefaultRegion
	}
	return &Composer{
		translator:  translator,
		transcriber: transcriber,
		log:         log,
		region:      region,
	}
}

// ComposeReminder drafts the default reminder for a customer. The customer
// name and signature are translated into the local language; when the
// translation collaborator fails, the message falls back to the raw name
// without a signature and is flagged degraded rather than erroring out.
func (c *Composer) ComposeReminder(ctx context.Context, customer domain.Customer) (domain.ReminderMessage, error) {
	outstanding := customer.Outstanding()
	amount := formatAmount(outstanding)

	name, err := c.translator.ToLocalLanguage(ctx, customer.Name)
	if err == nil {
		var signature string
		signature, err = c.translator.ToLocalLanguage(ctx, "Management")
		if err == nil {
			message := fmt.Sprintf(reminderBody+"،\n%s", name, amount, signature)
			return domain.ReminderMessage{
				CustomerID:  customer.ID,
				Message:     message,
				Outstanding: outstanding,
				Degraded:    false,
			}, nil
		}
	}

	c.log.WithError(err).WithField("customer_id", customer.ID).Warn("translation failed, using fallback reminder")
	return domain.ReminderMessage{
		CustomerID:  customer.ID,
		Message:     fmt.Sprintf(reminderBody, customer.Name, amount),
		Outstanding: outstanding,
		Degraded:    true,
	}, nil
}

// ProposeVoiceEdit transcribes the operator's spoken instruction and asks
// the rewrite collaborator to apply it to the drafted message. The result
// is only a proposal; the caller decides whether it replaces the draft.
func (c *Composer) ProposeVoiceEdit(ctx context.Context, req domain.VoiceEditRequest) (domain.VoiceEditProposal, error) {
	if strings.TrimSpace(req.Message) == "" {
		return domain.VoiceEditProposal{}, ErrEmptyMessage
	}

	transcript, err := c.transcriber.Transcribe(ctx, req.AudioBase64, translation.DefaultLocale)
	if err != nil {
		return domain.VoiceEditProposal{}, err
	}
	proposed, err := c.translator.Rewrite(ctx, req.Message, transcript)
	if err != nil {
		return domain.VoiceEditProposal{}, err
	}
	return domain.VoiceEditProposal{Transcript: transcript, Proposed: proposed}, nil
}

// DeepLink builds the wa.me URL carrying the message to the customer's
// phone. Customers without a phone number cannot receive one.
func (c *Composer) DeepLink(customer domain.Customer, message string) (domain.DeepLinkResponse, error) {
	if strings.TrimSpace(customer.Phone) == "" {
		return domain.DeepLinkResponse{}, ErrNoPhone
	}
	if strings.TrimSpace(message) == "" {
		return domain.DeepLinkResponse{}, ErrEmptyMessage
	}

	phone := c.normalizePhone(customer.Phone)
	encoded := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return domain.DeepLinkResponse{
		URL:   fmt.Sprintf("https://wa.me/%s?text=%s", phone, encoded),
		Phone: phone,
	}, nil
}

// normalizePhone yields the digits-only international form. Numbers that do
// not parse keep their raw digits so an operator typo still produces a
// usable link.
func (c *Composer) normalizePhone(raw string) string {
	parsed, err := libphonenumber.Parse(raw, c.region)
	if err == nil && libphonenumber.IsValidNumber(parsed) {
		return strings.TrimPrefix(libphonenumber.Format(parsed, libphonenumber.E164), "+")
	}
	return digitsOnly(raw)
}

// formatAmount renders the amount with thousands separators, the way the
// operators are used to reading rupee figures.
func formatAmount(d decimal.Decimal) string {
	s := d.Abs().String()
	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
