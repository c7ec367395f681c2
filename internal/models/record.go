package models

// PendingText is shown in place of OCR text until an extraction record exists.
const PendingText = "pending"

// Line is one line of text detected by a recognition engine.
type Line struct {
	Text string `json:"text"`
}

// ExtractionRecord is the derived artifact written next to each image under
// the user's text prefix. Field names are part of the stored format.
type ExtractionRecord struct {
	UserID    string `json:"user_id"`
	ImageName string `json:"image_name"`
	S3Key     string `json:"s3_key"` // source image key; name kept for compatibility with existing artifacts
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// StoredImage is an accepted upload.
type StoredImage struct {
	UserID   string `json:"userId"`
	Filename string `json:"filename"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
}

// UnifiedViewRow joins one stored image with its extracted text, if any.
// It is computed on every read and never persisted.
type UnifiedViewRow struct {
	Filename string `json:"filename"`
	Key      string `json:"key"`
	URL      string `json:"url"`
	OCRText  string `json:"ocr_text"`
}

// Pending reports whether no extraction record has been matched to the row yet.
func (r UnifiedViewRow) Pending() bool {
	return r.OCRText == PendingText
}

// UserRecord is a user entry owned by the credential-lookup service.
type UserRecord struct {
	UserID string `firestore:"userId"`
	Email  string `firestore:"email"`
}
