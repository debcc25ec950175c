// Package download fetches the encoder model and its companion files.
package download

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zinkosoft/sensestream/internal/conf"
	"github.com/zinkosoft/sensestream/internal/errors"
)

const downloadTimeout = 10 * time.Minute

// Command creates the download-models command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		modelURL      string
		vocabURL      string
		embeddingsURL string
		dest          string
		modelSHA      string
	)

	cmd := &cobra.Command{
		Use:   "download-models",
		Short: "Download the encoder model, vocabulary and embedding table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelURL == "" {
				return errors.Newf("--model-url is required").
					Component("download").
					Category(errors.CategoryConfiguration).
					Build()
			}
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return errors.New(err).
					Component("download").
					Category(errors.CategoryFileIO).
					Context("operation", "create_dest").
					Build()
			}

			downloads := []struct {
				url, sha string
			}{
				{modelURL, modelSHA},
				{vocabURL, ""},
				{embeddingsURL, ""},
			}
			for _, d := range downloads {
				if d.url == "" {
					continue
				}
				if err := fetch(d.url, dest, d.sha); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modelURL, "model-url", "", "URL of the encoder model file")
	cmd.Flags().StringVar(&vocabURL, "vocab-url", "", "URL of the vocabulary file")
	cmd.Flags().StringVar(&embeddingsURL, "embeddings-url", "", "URL of the query embedding table")
	defaultDest := "models"
	if settings.Model.Path != "" {
		defaultDest = filepath.Dir(settings.Model.Path)
	}
	cmd.Flags().StringVar(&dest, "dest", defaultDest, "Destination directory")
	cmd.Flags().StringVar(&modelSHA, "model-sha256", "", "Expected SHA-256 of the model file")

	return cmd
}

// fetch downloads one file to dest, optionally verifying its SHA-256.
func fetch(url, dest, expectedSHA string) error {
	name := filepath.Base(strings.SplitN(url, "?", 2)[0])
	target := filepath.Join(dest, name)

	fmt.Printf("downloading %s\n", name)

	client := &http.Client{Timeout: downloadTimeout}
	resp, err := client.Get(url)
	if err != nil {
		return errors.New(err).
			Component("download").
			Category(errors.CategoryNetwork).
			Context("operation", "http_get").
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("unexpected status %s", resp.Status).
			Component("download").
			Category(errors.CategoryNetwork).
			Context("status", resp.StatusCode).
			Build()
	}

	tmp, err := os.CreateTemp(dest, name+".*.partial")
	if err != nil {
		return errors.New(err).
			Component("download").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	closeErr := tmp.Close()
	if err != nil {
		return errors.New(err).
			Component("download").
			Category(errors.CategoryNetwork).
			Context("operation", "download_body").
			Build()
	}
	if closeErr != nil {
		return errors.New(closeErr).
			Component("download").
			Category(errors.CategoryFileIO).
			Build()
	}

	if expectedSHA != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, expectedSHA) {
			return errors.Newf("checksum mismatch for %s: got %s", name, got).
				Component("download").
				Category(errors.CategoryValidation).
				Build()
		}
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return errors.New(err).
			Component("download").
			Category(errors.CategoryFileIO).
			Build()
	}

	fmt.Printf("saved %s (%d bytes)\n", target, written)
	return nil
}
