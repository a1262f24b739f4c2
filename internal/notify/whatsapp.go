// Package notify delivers signing links and signed contracts to applicants.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Lllllllleong/contractsigning/internal/outbound"
)

// ErrNoRecipient is returned when a message has no phone number or address.
var ErrNoRecipient = errors.New("no recipient")

// Messenger sends WhatsApp messages.
type Messenger interface {
	SendText(ctx context.Context, phone, text string) error
	SendDocument(ctx context.Context, phone, url, fileName string) error
}

type evolutionOptions struct {
	Delay int `json:"delay"`
}

type sendTextRequest struct {
	Number  string           `json:"number"`
	Options evolutionOptions `json:"options"`
	Text    string           `json:"text"`
}

type sendMediaRequest struct {
	Number    string           `json:"number"`
	Options   evolutionOptions `json:"options"`
	MediaType string           `json:"mediatype"`
	Media     string           `json:"media"`
	FileName  string           `json:"fileName"`
}

// EvolutionMessenger talks to an Evolution API instance.
type EvolutionMessenger struct {
	http          *outbound.Client
	baseURL       string
	instance      string
	apiKey        string
	countryPrefix string
	delayMillis   int
}

// NewEvolutionMessenger returns a messenger for instance at baseURL. Local
// numbers are addressed as <countryPrefix><number>@s.whatsapp.net.
func NewEvolutionMessenger(client *outbound.Client, baseURL, instance, apiKey, countryPrefix string, delayMillis int) *EvolutionMessenger {
	return &EvolutionMessenger{
		http:          client,
		baseURL:       strings.TrimRight(baseURL, "/"),
		instance:      instance,
		apiKey:        apiKey,
		countryPrefix: countryPrefix,
		delayMillis:   delayMillis,
	}
}

// JID turns a local phone number into a WhatsApp address.
func (m *EvolutionMessenger) JID(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return m.countryPrefix + digits + "@s.whatsapp.net"
}

func (m *EvolutionMessenger) SendText(ctx context.Context, phone, text string) error {
	if strings.TrimSpace(phone) == "" {
		return ErrNoRecipient
	}
	req := sendTextRequest{Number: m.JID(phone), Options: evolutionOptions{Delay: m.delayMillis}, Text: text}
	if err := m.post(ctx, "sendText", req); err != nil {
		return fmt.Errorf("failed to send WhatsApp text to %s: %w", req.Number, err)
	}
	return nil
}

func (m *EvolutionMessenger) SendDocument(ctx context.Context, phone, url, fileName string) error {
	if strings.TrimSpace(phone) == "" {
		return ErrNoRecipient
	}
	req := sendMediaRequest{
		Number:    m.JID(phone),
		Options:   evolutionOptions{Delay: m.delayMillis},
		MediaType: "document",
		Media:     url,
		FileName:  fileName,
	}
	if err := m.post(ctx, "sendMedia", req); err != nil {
		return fmt.Errorf("failed to send WhatsApp document to %s: %w", req.Number, err)
	}
	return nil
}

func (m *EvolutionMessenger) post(ctx context.Context, action string, body any) error {
	url := fmt.Sprintf("%s/message/%s/%s", m.baseURL, action, m.instance)
	return m.http.DoJSON(ctx, http.MethodPost, url, map[string]string{"apikey": m.apiKey}, body, nil)
}

// SigningLinkMessage is sent right after enrollment.
func SigningLinkMessage(firstName, link string) string {
	return fmt.Sprintf("¡Hola %s!👋 Bienvenido a Universidad En Línea América Latina🧑‍🎓 \n"+
		"Por favor, firma tu contrato de inscripción en el siguiente enlace:👇👇\n\n%s", firstName, link)
}

// SignedMessage accompanies the signed contract.
func SignedMessage(name string) string {
	return fmt.Sprintf("¡Gracias %s!🤗 Tu contrato ha sido firmado. Te adjuntamos una copia.📝👇", name)
}
