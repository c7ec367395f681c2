package models

// These structs define the JSON payloads exchanged with the storage trigger
// and with the web gateway's callers.

// StorageNotification is the payload of a GCS object-finalized event.
type StorageNotification struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// S3EventEnvelope is the S3-style notification shape some relays forward.
// Object keys in it are form-encoded.
type S3EventEnvelope struct {
	Records []S3EventRecord `json:"Records"`
}

type S3EventRecord struct {
	S3 struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// Message categories returned to the presentation layer.
const (
	CategorySuccess = "success"
	CategoryError   = "error"
)

// UploadResponse is the output of the upload endpoint.
type UploadResponse struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Key      string `json:"key,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ImagesResponse is the output of the image listing endpoint.
type ImagesResponse struct {
	Category string           `json:"category"`
	Message  string           `json:"message,omitempty"`
	Images   []UnifiedViewRow `json:"images"`
}
