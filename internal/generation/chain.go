package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/phrazzld/ereuna/internal/platform/logger"
)

// SectionSpec describes one section to generate.
type SectionSpec struct {
	Title          string
	PromptTemplate string
}

// Section is the outcome of generating one SectionSpec. Exactly one of Text
// and Err is meaningful: a failed section has no text.
type Section struct {
	Title          string
	PromptTemplate string

	// Prompt is the prompt actually sent, after placeholder substitution.
	Prompt string
	Text   string
	Err    error
}

// OK reports whether the section was generated.
func (s Section) OK() bool {
	return s.Err == nil
}

// Report is an ordered sequence of sections. The order is document order.
type Report struct {
	Sections []Section
}

// Context returns the text of every generated section joined by
// SectionBoundary. Failed sections contribute nothing.
func (r Report) Context() string {
	return r.contextBefore(len(r.Sections))
}

func (r Report) contextBefore(index int) string {
	parts := make([]string, 0, index)
	for _, s := range r.Sections[:index] {
		if s.OK() {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, SectionBoundary)
}

// Failed returns the indexes of sections that could not be generated.
func (r Report) Failed() []int {
	var failed []int
	for i, s := range r.Sections {
		if !s.OK() {
			failed = append(failed, i)
		}
	}
	return failed
}

// PromptCaller sends a prompt and returns generated text. *Caller is the
// production implementation.
type PromptCaller interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// SectionObserver is notified after each section is generated, in order.
type SectionObserver func(ctx context.Context, index int, section Section)

// Chainer generates report sections one after another, threading the text of
// earlier sections into each later prompt.
type Chainer struct {
	caller       PromptCaller
	systemPrompt string
	observer     SectionObserver
}

// ChainerOption customizes a Chainer.
type ChainerOption func(*Chainer)

// WithSystemPrompt sets a prompt prefix applied to every section.
func WithSystemPrompt(prompt string) ChainerOption {
	return func(c *Chainer) {
		c.systemPrompt = prompt
	}
}

// WithObserver registers fn to be called after each section completes.
func WithObserver(fn SectionObserver) ChainerOption {
	return func(c *Chainer) {
		c.observer = fn
	}
}

// NewChainer creates a Chainer that sends prompts through caller.
func NewChainer(caller PromptCaller, opts ...ChainerOption) (*Chainer, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: caller cannot be nil", ErrInvalidConfig)
	}
	c := &Chainer{caller: caller}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate produces one section per spec, in order.
//
// Each prompt carries the text of every earlier section that succeeded. A
// section whose call fails is recorded with its error and generation moves on
// to the next spec. Once ctx is done the remaining sections are marked failed
// without calling the provider. An empty spec list yields an empty report.
func (c *Chainer) Generate(ctx context.Context, specs []SectionSpec, vars Vars) Report {
	log := logger.FromContext(ctx)
	report := Report{Sections: make([]Section, 0, len(specs))}

	for i, spec := range specs {
		section := c.generate(ctx, spec, vars, report.Context())
		report.Sections = append(report.Sections, section)

		if section.OK() {
			log.InfoContext(ctx, "section generated",
				"section_index", i,
				"section_title", spec.Title,
				"length", len(section.Text))
		} else {
			log.WarnContext(ctx, "section generation failed",
				"section_index", i,
				"section_title", spec.Title,
				"error", section.Err)
		}

		if c.observer != nil {
			c.observer(ctx, i, section)
		}
	}

	return report
}

// Regenerate produces a new version of the section at index, using the
// sections before it as context, and returns a new Report with that section
// replaced. The input report is left untouched. Sections after index keep
// their text even though it was written against the old version.
func (c *Chainer) Regenerate(ctx context.Context, report Report, index int, vars Vars) (Report, error) {
	if index < 0 || index >= len(report.Sections) {
		return Report{}, fmt.Errorf("%w: %d not in [0, %d)", ErrSectionIndex, index, len(report.Sections))
	}

	old := report.Sections[index]
	spec := SectionSpec{Title: old.Title, PromptTemplate: old.PromptTemplate}
	section := c.generate(ctx, spec, vars, report.contextBefore(index))

	sections := make([]Section, len(report.Sections))
	copy(sections, report.Sections)
	sections[index] = section

	if c.observer != nil {
		c.observer(ctx, index, section)
	}

	return Report{Sections: sections}, nil
}

func (c *Chainer) generate(ctx context.Context, spec SectionSpec, vars Vars, prior string) Section {
	section := Section{
		Title:          spec.Title,
		PromptTemplate: spec.PromptTemplate,
		Prompt:         BuildPrompt(c.systemPrompt, spec, vars, prior),
	}

	if err := ctx.Err(); err != nil {
		section.Err = &CallError{Aborted: true, Err: err}
		return section
	}

	text, err := c.caller.Call(ctx, section.Prompt)
	if err != nil {
		section.Err = err
		return section
	}
	section.Text = text
	return section
}
