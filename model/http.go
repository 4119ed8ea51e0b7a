package model

type MelodyResponse struct {
	Score    CanonicalScore `json:"score"`
	Warnings []Diagnostic   `json:"warnings"`
}

type SATBResponse struct {
	Score              CanonicalScore `json:"score"`
	Warnings           []Diagnostic   `json:"warnings"`
	HarmonizationNotes string         `json:"harmonization_notes"`
}

type ValidateResponse struct {
	Valid       bool         `json:"valid"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type ErrorResponse struct {
	Error string `json:"detail"`
}
