package domain

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	minQuestions = 5
	maxQuestions = 20
	// AnswersPerQuestion is fixed: every question offers four responses.
	AnswersPerQuestion = 4
	minPoints          = 5
	maxPoints          = 100
	minDescription     = 10
	maxDescription     = 160
)

// ValidateSubmission checks a candidate quiz against every submission rule
// and returns the full list of violations. It never stops at the first
// failure and never touches the store.
func ValidateSubmission(sub QuizSubmission) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(sub.LocationName) == "" {
		errs = append(errs, FieldError{"location_name", "Must provide a location name"})
	}
	if !validImageURL(sub.Img) {
		errs = append(errs, FieldError{"img", "Must provide a valid image URL"})
	}
	if d := len(strings.TrimSpace(sub.Description)); d < minDescription || d > maxDescription {
		errs = append(errs, FieldError{"description", "Must provide a valid description"})
	}
	if sub.Latitude < -90 || sub.Latitude > 90 || sub.Longitude < -180 || sub.Longitude > 180 {
		errs = append(errs, FieldError{"coordinates", "Must provide valid coordinates"})
	}

	switch {
	case len(sub.Questions) < minQuestions:
		errs = append(errs, FieldError{"questions", "Must provide at least five questions"})
	case len(sub.Questions) > maxQuestions:
		errs = append(errs, FieldError{"questions", "Must provide no more than twenty questions"})
	}

	for i, q := range sub.Questions {
		errs = append(errs, validateQuestion(i+1, q)...)
	}
	return errs
}

func validateQuestion(index int, q QuestionSubmission) ValidationErrors {
	var errs ValidationErrors
	field := fmt.Sprintf("questions[%d]", index)

	if q.Points < minPoints || q.Points > maxPoints {
		errs = append(errs, FieldError{field, "please provide a valid point total"})
	} else if q.Points%5 != 0 {
		errs = append(errs, FieldError{field, "point total must be a multiple of 5"})
	}

	if q.Correct < 1 || q.Correct > AnswersPerQuestion {
		errs = append(errs, FieldError{field, "please provide a valid answer"})
	}

	prompt := strings.TrimSpace(q.Prompt)
	if prompt == "" {
		errs = append(errs, FieldError{field, "prompt is invalid"})
	} else if !strings.HasSuffix(prompt, "?") {
		errs = append(errs, FieldError{field, "formatting error, please end question prompt with '?'"})
	}

	if len(q.Responses) != AnswersPerQuestion {
		errs = append(errs, FieldError{field, "must provide exactly four answers"})
	}
	for j, response := range q.Responses {
		if strings.TrimSpace(response) == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("questions[%d].responses[%d]", index, j+1),
				Message: "answer is invalid",
			})
		}
	}
	return errs
}

func validImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
