package event

import "strings"

// Variant is one kind of inbound event with its own payload shape and
// placeholders. Variants are built once at startup and only read afterwards.
type Variant interface {
	ID() string
	APIName() string
	Platform() Platform
	Placeholders() *PlaceholderSet
	// Message renders the broadcast announcing the event, empty for none
	Message(p Payload) string
	// BasePayload extracts the event object from the envelope
	BasePayload(env *Envelope) (Payload, error)
}

// DonationVariant is implemented by variants carrying a monetary amount.
// Only these variants evaluate donation conditions.
type DonationVariant interface {
	Variant
	Amount(p Payload) float64
	Currency(p Payload) string
}

type base struct {
	id           string
	apiName      string
	platform     Platform
	placeholders *PlaceholderSet
	message      string
}

func newBase(id, apiName string, platform Platform, message string) *base {
	b := &base{
		id:           id,
		apiName:      apiName,
		platform:     platform,
		placeholders: NewPlaceholderSet(),
		message:      message,
	}
	b.placeholders.Add("user", RelatedUser)
	return b
}

func (b *base) ID() string                    { return b.id }
func (b *base) APIName() string               { return b.apiName }
func (b *base) Platform() Platform            { return b.platform }
func (b *base) Placeholders() *PlaceholderSet { return b.placeholders }

// AddPlaceholder registers or overrides a placeholder on the variant
func (b *base) AddPlaceholder(name string, fn ValueFunc) {
	b.placeholders.Add(name, fn)
}

func (b *base) Message(p Payload) string {
	if b.message == "" {
		return ""
	}
	return b.placeholders.ResolveAll(b.message, p)
}

func (b *base) BasePayload(env *Envelope) (Payload, error) {
	messages, err := env.Messages()
	if err != nil {
		return nil, err
	}
	obj, ok := messages[0].(map[string]interface{})
	if !ok {
		return nil, malformed("message[0]", "expected an object")
	}
	return Payload(obj), nil
}

// RelatedUser is the default user placeholder: the payload's name field
func RelatedUser(p Payload) string {
	return p.String("name")
}

// donation is the shared shape of every money-like event
type donation struct {
	*base
	amount    func(Payload) float64
	currency  func(Payload) string
	formatted func(Payload) string
}

func newDonation(id, apiName string, platform Platform, message string) *donation {
	d := &donation{
		base: newBase(id, apiName, platform, message),
		amount: func(p Payload) float64 {
			f, _ := p.Float("amount")
			return f
		},
		currency: func(p Payload) string {
			return strings.ToUpper(p.String("currency"))
		},
	}
	d.formatted = func(p Payload) string {
		if p.Has("formatted_amount") {
			return p.String("formatted_amount")
		}
		return strings.TrimSpace(FormatNumber(d.Amount(p)) + " " + d.Currency(p))
	}

	d.AddPlaceholder("amount", func(p Payload) string { return FormatNumber(d.Amount(p)) })
	d.AddPlaceholder("currency", d.Currency)
	d.AddPlaceholder("formatted_amount", func(p Payload) string { return d.formatted(p) })
	d.AddPlaceholder("message", field("message"))
	return d
}

func (d *donation) Amount(p Payload) float64 {
	return d.amount(p)
}

func (d *donation) Currency(p Payload) string {
	return d.currency(p)
}

func valueOr(key, fallback string) ValueFunc {
	return func(p Payload) string {
		if v := p.String(key); v != "" {
			return v
		}
		return fallback
	}
}

func field(key string) ValueFunc {
	return func(p Payload) string {
		return p.String(key)
	}
}
