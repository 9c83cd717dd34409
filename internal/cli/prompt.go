// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/jeranaias/rigrun-setup/internal/setup"
)

// SurveyPrompter asks questions on the terminal.
type SurveyPrompter struct {
	opts []survey.AskOpt
}

// NewSurveyPrompter returns a prompter on the process stdio.
func NewSurveyPrompter() *SurveyPrompter {
	return &SurveyPrompter{}
}

// NewSurveyPrompterWithStdio returns a prompter bound to explicit streams.
func NewSurveyPrompterWithStdio(in terminal.FileReader, out terminal.FileWriter) *SurveyPrompter {
	return &SurveyPrompter{opts: []survey.AskOpt{survey.WithStdio(in, out, out)}}
}

// Select asks for one of options.
func (p *SurveyPrompter) Select(message string, options []string, def string) (string, error) {
	var answer string
	q := &survey.Select{Message: message, Options: options, Default: def}
	if err := survey.AskOne(q, &answer, p.opts...); err != nil {
		return "", interrupted(err)
	}
	return answer, nil
}

// Input asks for free text, re-asking until validate accepts it.
func (p *SurveyPrompter) Input(message, def string, validate func(string) error) (string, error) {
	var answer string
	opts := p.opts
	if validate != nil {
		opts = append(opts[:len(opts):len(opts)], survey.WithValidator(func(v interface{}) error {
			s, _ := v.(string)
			return validate(s)
		}))
	}
	if err := survey.AskOne(&survey.Input{Message: message, Default: def}, &answer, opts...); err != nil {
		return "", interrupted(err)
	}
	return answer, nil
}

// Confirm asks a yes/no question.
func (p *SurveyPrompter) Confirm(message string, def bool) (bool, error) {
	answer := def
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &answer, p.opts...); err != nil {
		return false, interrupted(err)
	}
	return answer, nil
}

// interrupted turns Ctrl-C into setup.ErrAborted.
func interrupted(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return setup.ErrAborted
	}
	return err
}
