package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var ingestServer string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file> [file...]",
	Short: "Upload documents into a running doclens server",
	Long: `Upload documents to a running doclens server so they become part of
its shared session. The server extracts, chunks, embeds and indexes each
file.

Examples:
  doclens ingest handbook.pdf
  doclens ingest notes.md report.pdf --server http://localhost:8000`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestServer, "server", "s", "", "server base URL (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	base := ingestServer
	if base == "" {
		base = "http://" + cfg.ServerAddr
	}
	base = strings.TrimRight(base, "/")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, path := range args {
		if err := addUpload(mw, path); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/documents", &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload documents: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload documents: server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var result struct {
		DocumentsIndexed int      `json:"documents_indexed"`
		ChunksIndexed    int      `json:"chunks_indexed"`
		Errors           []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Printf("Indexed %d documents (%d chunks)\n", result.DocumentsIndexed, result.ChunksIndexed)
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", e)
	}
	return nil
}

// addUpload streams one local file into the multipart body.
func addUpload(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fw, err := mw.CreateFormFile("documents", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
