package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

const (
	defaultUploadURL = "https://api.nodeimage.com/api/upload"
	defaultDeleteURL = "https://api.nodeimage.com/api/v1/delete/"
)

// NodeImageClient hosts user-supplied edit sources on NodeImage. The Seedream
// edit endpoint only accepts image URLs, so an uploaded file is pushed here
// first and removed again once the generation call has finished.
type NodeImageClient struct {
	APIKey    string
	Client    *http.Client
	UploadURL string
	DeleteURL string
}

// NewNodeImageClient creates a new NodeImage client.
func NewNodeImageClient(apiKey string) *NodeImageClient {
	return &NodeImageClient{
		APIKey:    apiKey,
		Client:    &http.Client{},
		UploadURL: defaultUploadURL,
		DeleteURL: defaultDeleteURL,
	}
}

// UploadResponse matches the structure of the successful upload response.
type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ImageID string `json:"image_id"`
	Links   struct {
		Direct string `json:"direct"`
	} `json:"links"`
}

// Upload pushes an image and returns its direct URL and image ID.
func (c *NodeImageClient) Upload(ctx context.Context, imageBytes []byte, filename string) (*UploadResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("imagehost: failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(imageBytes)); err != nil {
		return nil, fmt.Errorf("imagehost: failed to copy image bytes to form: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("imagehost: failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagehost: failed to execute upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("imagehost: API returned non-200 status: %d, body: %s", resp.StatusCode, string(respBody))
	}

	var uploadResp UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return nil, fmt.Errorf("imagehost: failed to decode upload response: %w", err)
	}

	if !uploadResp.Success {
		return nil, fmt.Errorf("imagehost: API reported an error: %s", uploadResp.Message)
	}

	return &uploadResp, nil
}

// Delete removes a previously uploaded image by its ID.
func (c *NodeImageClient) Delete(ctx context.Context, imageID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.DeleteURL+imageID, nil)
	if err != nil {
		return fmt.Errorf("imagehost: failed to create delete request: %w", err)
	}
	req.Header.Set("X-API-Key", c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("imagehost: failed to execute delete request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("imagehost: API returned non-200 status for delete: %d, body: %s", resp.StatusCode, string(respBody))
	}

	var deleteResp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&deleteResp); err != nil {
		return fmt.Errorf("imagehost: failed to decode delete response: %w", err)
	}

	if !deleteResp.Success {
		return fmt.Errorf("imagehost: API reported an error on delete: %s", deleteResp.Message)
	}

	return nil
}
