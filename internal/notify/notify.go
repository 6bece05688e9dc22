package notify

import (
	"bytes"
	"context"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	KindDelivery   Kind = "delivery"
	KindWithdrawal Kind = "withdrawal"
)

// Message is the body posted to the messaging webhook. Exactly one of
// DeliveryData and WithdrawalData is set, matching Type.
type Message struct {
	To             string          `json:"to"`
	Message        string          `json:"message"`
	Type           Kind            `json:"type"`
	DeliveryData   *DeliveryData   `json:"deliveryData,omitempty"`
	WithdrawalData *WithdrawalData `json:"withdrawalData,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

type DeliveryData struct {
	Code  string `json:"codigo"`
	Name  string `json:"morador"`
	Unit  string `json:"apartamento"`
	Block string `json:"bloco,omitempty"`
	Notes string `json:"observacoes,omitempty"`
	Date  string `json:"data"`
	Time  string `json:"hora"`
	Photo string `json:"foto,omitempty"`
}

type WithdrawalData struct {
	Code        string `json:"codigo"`
	Name        string `json:"morador"`
	Unit        string `json:"apartamento"`
	Block       string `json:"bloco,omitempty"`
	Description string `json:"descricao,omitempty"`
	Date        string `json:"data"`
	Time        string `json:"hora"`
}

// Sender delivers one message. It never retries; an error means the attempt failed.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Log is the sender used when no transport is configured.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(_ context.Context, msg Message) error {
	l.Logger.Info("notification not dispatched, no driver configured",
		zap.String("type", string(msg.Type)),
		zap.String("to", msg.To),
	)
	return nil
}

var (
	deliveryTemplate = template.Must(template.New("delivery").Parse(
		"🏢 *{{.Condominium}}*\n\n📦 *Nova Encomenda Chegou!*\n\nOlá *{{.Name}}*, você tem uma nova encomenda!\n\n" +
			"📅 Data: {{.Date}}\n⏰ Hora: {{.Time}}\n🔑 Código de retirada: *{{.Code}}*" +
			"{{if .Notes}}\n📝 Observações: {{.Notes}}\n{{end}}" +
			"\nPara retirar, apresente este código na portaria.\n\n" +
			"Não responda esta mensagem, este é um atendimento automático."))

	withdrawalTemplate = template.Must(template.New("withdrawal").Parse(
		"🏢 *{{.Condominium}}*\n\n✅ *Encomenda Retirada*\n\nOlá *{{.Name}}*, sua encomenda foi retirada com sucesso!\n\n" +
			"📅 Data: {{.Date}}\n⏰ Hora: {{.Time}}\n🔑 Código: {{.Code}}\n📝 {{.Description}}\n\n" +
			"Não responda esta mensagem, este é um atendimento automático."))
)

// Recipient identifies the resident a message is about.
type Recipient struct {
	Name  string
	Phone string
	Unit  string
	Block string
}

// Renderer builds messages in the condominium's local time.
type Renderer struct {
	Location        *time.Location
	CondominiumName string
}

func (r Renderer) local(at time.Time) (string, string) {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	at = at.In(loc)
	return at.Format("02/01/2006"), at.Format("15:04")
}

func (r Renderer) condominium(name string) string {
	if r.CondominiumName != "" {
		return r.CondominiumName
	}
	if strings.TrimSpace(name) == "" {
		return "Condomínio"
	}
	return name
}

func (r Renderer) Delivery(condo string, to Recipient, code, notes, photo string, at time.Time) (Message, error) {
	date, clock := r.local(at)
	notes = strings.TrimSpace(notes)
	var buf bytes.Buffer
	err := deliveryTemplate.Execute(&buf, map[string]string{
		"Condominium": r.condominium(condo),
		"Name":        to.Name,
		"Date":        date,
		"Time":        clock,
		"Code":        code,
		"Notes":       notes,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to.Phone,
		Message: buf.String(),
		Type:    KindDelivery,
		DeliveryData: &DeliveryData{
			Code:  code,
			Name:  to.Name,
			Unit:  to.Unit,
			Block: to.Block,
			Notes: notes,
			Date:  date,
			Time:  clock,
			Photo: photo,
		},
		Timestamp: at.UTC(),
	}, nil
}

func (r Renderer) Withdrawal(condo string, to Recipient, code, description string, at time.Time) (Message, error) {
	date, clock := r.local(at)
	var buf bytes.Buffer
	err := withdrawalTemplate.Execute(&buf, map[string]string{
		"Condominium": r.condominium(condo),
		"Name":        to.Name,
		"Date":        date,
		"Time":        clock,
		"Code":        code,
		"Description": description,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to.Phone,
		Message: buf.String(),
		Type:    KindWithdrawal,
		WithdrawalData: &WithdrawalData{
			Code:        code,
			Name:        to.Name,
			Unit:        to.Unit,
			Block:       to.Block,
			Description: description,
			Date:        date,
			Time:        clock,
		},
		Timestamp: at.UTC(),
	}, nil
}
