package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Cloud uploads files to an unsigned Cloudinary-style upload endpoint and
// returns the hosted secure URL.
type Cloud struct {
	endpoint string // e.g. https://api.cloudinary.com/v1_1/<cloud>/image/upload
	preset   string
	client   *http.Client
}

func NewCloud(endpoint, uploadPreset string) *Cloud {
	return &Cloud{
		endpoint: endpoint,
		preset:   uploadPreset,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type cloudUploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload posts the file as multipart form data. An already-hosted URL is
// returned unchanged; an empty file resolves to an empty URL.
func (c *Cloud) Upload(ctx context.Context, file File, folder string) (string, error) {
	if file.URL != "" {
		return file.URL, nil
	}
	if len(file.Content) == 0 {
		return "", nil
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	name := file.Name
	if name == "" {
		name = "file.jpg"
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if err := form.WriteField("upload_preset", c.preset); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if err := form.WriteField("folder", folder); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading file: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading upload response: %w", err)
	}

	var parsed cloudUploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decoding upload response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("upload rejected (status %d): %s", resp.StatusCode, msg)
	}
	if parsed.SecureURL == "" {
		return "", fmt.Errorf("upload response missing secure_url")
	}
	return parsed.SecureURL, nil
}
