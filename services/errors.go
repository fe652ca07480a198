package services

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrExamNotFound       = errors.New("exam not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAnswerNotFound     = errors.New("answer not found")
	ErrForbidden          = errors.New("not the exam owner")
	ErrStateConflict      = errors.New("state conflict")
)
