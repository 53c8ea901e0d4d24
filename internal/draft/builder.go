package draft

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bcast/internal/model"
)

// Step identifies one wizard step. Steps are strictly ordered.
type Step int

const (
	StepBasicInfo Step = iota
	StepContent
	StepAudience
)

func (s Step) String() string {
	switch s {
	case StepBasicInfo:
		return "basic_info"
	case StepContent:
		return "content"
	case StepAudience:
		return "audience_schedule"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// StepError is a validation failure local to one wizard step.
// It blocks forward navigation and never reaches the transport.
type StepError struct {
	Step  Step
	Field string
	Msg   string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Step, e.Field, e.Msg)
}

// BasicInfo is the first step: identity and message-type choice.
type BasicInfo struct {
	Name        string
	Description string
	Kind        model.MessageKind
}

// Content is the second step. Body is used for custom messages;
// TemplateID/TemplateBody when a template is referenced.
type Content struct {
	Body         string
	TemplateID   string
	TemplateBody string
}

// Audience is the third step: sender set, filter snapshot with its resolved
// recipient count, and the schedule.
type Audience struct {
	SenderIDs      []string
	Filter         model.FilterSnapshot
	RecipientCount int
	Schedule       model.ScheduleKind
	ScheduledAt    *time.Time
}

// Builder is the wizard state machine. It is not safe for concurrent use;
// the desk owns exactly one builder at a time.
type Builder struct {
	id   string
	step Step

	basic    BasicInfo
	content  Content
	audience Audience

	now func() time.Time
}

// New returns an empty builder positioned at the first step.
func New() *Builder {
	return NewWithClock(time.Now)
}

// NewWithClock is New with an injected clock, used by tests to pin "future
// instant" validation.
func NewWithClock(now func() time.Time) *Builder {
	return &Builder{
		id:  uuid.NewString(),
		now: now,
		basic: BasicInfo{
			Kind: model.MessageCustom,
		},
		audience: Audience{
			Schedule: model.ScheduleNow,
		},
	}
}

func (b *Builder) ID() string { return b.id }

func (b *Builder) Step() Step { return b.step }

func (b *Builder) Basic() BasicInfo { return b.basic }

func (b *Builder) Content() Content { return b.content }

func (b *Builder) Audience() Audience {
	cp := b.audience
	cp.SenderIDs = append([]string(nil), b.audience.SenderIDs...)
	cp.Filter.CategoryIDs = append([]string(nil), b.audience.Filter.CategoryIDs...)
	return cp
}

// SetBasicInfo records the first step's values without validating; values
// are only checked when moving forward or submitting.
func (b *Builder) SetBasicInfo(v BasicInfo) { b.basic = v }

func (b *Builder) SetContent(v Content) { b.content = v }

func (b *Builder) SetAudience(v Audience) {
	v.SenderIDs = append([]string(nil), v.SenderIDs...)
	v.Filter.CategoryIDs = append([]string(nil), v.Filter.CategoryIDs...)
	b.audience = v
}

// Next validates the current step and advances. On the last step it
// validates but stays put (submission is the only way out).
func (b *Builder) Next() error {
	if err := b.validate(b.step); err != nil {
		return err
	}
	if b.step < StepAudience {
		b.step++
	}
	return nil
}

// Back retreats one step. All entered values are preserved.
func (b *Builder) Back() {
	if b.step > StepBasicInfo {
		b.step--
	}
}

// CanSubmit reports whether every step validates.
func (b *Builder) CanSubmit() bool {
	for s := StepBasicInfo; s <= StepAudience; s++ {
		if b.validate(s) != nil {
			return false
		}
	}
	return true
}

// Build validates all steps and produces the immutable submission payload
// without ending the session. The builder keeps its id, step, and values,
// so a failed handoff to the engine can be retried as-is.
func (b *Builder) Build() (model.Submission, error) {
	for s := StepBasicInfo; s <= StepAudience; s++ {
		if err := b.validate(s); err != nil {
			return model.Submission{}, err
		}
	}

	sub := model.Submission{
		DraftID:        b.id,
		Name:           strings.TrimSpace(b.basic.Name),
		Description:    strings.TrimSpace(b.basic.Description),
		MessageKind:    b.basic.Kind,
		SenderIDs:      append([]string(nil), b.audience.SenderIDs...),
		Filter:         b.audience.Filter,
		RecipientCount: b.audience.RecipientCount,
		Schedule:       b.audience.Schedule,
	}
	sub.Filter.CategoryIDs = append([]string(nil), b.audience.Filter.CategoryIDs...)
	switch b.basic.Kind {
	case model.MessageTemplate:
		sub.TemplateID = b.content.TemplateID
		sub.Message = b.content.TemplateBody
	default:
		sub.Message = b.content.Body
	}
	if b.audience.Schedule == model.ScheduleLater && b.audience.ScheduledAt != nil {
		at := *b.audience.ScheduledAt
		sub.ScheduledAt = &at
	}
	return sub, nil
}

// Submit is Build plus a reset to the initial empty state.
func (b *Builder) Submit() (model.Submission, error) {
	sub, err := b.Build()
	if err != nil {
		return model.Submission{}, err
	}
	b.Reset()
	return sub, nil
}

// Reset restores the builder to its initial empty state under a fresh id.
func (b *Builder) Reset() {
	*b = *NewWithClock(b.now)
}

func (b *Builder) validate(s Step) error {
	switch s {
	case StepBasicInfo:
		if strings.TrimSpace(b.basic.Name) == "" {
			return &StepError{Step: s, Field: "name", Msg: "name is required"}
		}
		if b.basic.Kind != model.MessageCustom && b.basic.Kind != model.MessageTemplate {
			return &StepError{Step: s, Field: "message_kind", Msg: "choose custom or template"}
		}
	case StepContent:
		if b.basic.Kind == model.MessageTemplate {
			if b.content.TemplateID == "" {
				return &StepError{Step: s, Field: "template", Msg: "select a template"}
			}
		} else if strings.TrimSpace(b.content.Body) == "" {
			return &StepError{Step: s, Field: "message", Msg: "message body is required"}
		}
	case StepAudience:
		if len(b.audience.SenderIDs) == 0 {
			return &StepError{Step: s, Field: "senders", Msg: "select at least one connected sender"}
		}
		if b.audience.RecipientCount <= 0 {
			return &StepError{Step: s, Field: "recipients", Msg: "no recipients match the current filters"}
		}
		if b.audience.Schedule == model.ScheduleLater {
			if b.audience.ScheduledAt == nil {
				return &StepError{Step: s, Field: "scheduled_at", Msg: "a schedule time is required"}
			}
			if !b.audience.ScheduledAt.After(b.now()) {
				return &StepError{Step: s, Field: "scheduled_at", Msg: "schedule time must be in the future"}
			}
		}
	}
	return nil
}
