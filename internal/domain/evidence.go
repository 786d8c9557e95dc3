package domain

// EvidenceRef points at an already-uploaded file in the external storage
// collaborator. The dispute service only records the reference.
type EvidenceRef struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}
