package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveClient uploads finished caption files to Google Drive
type DriveClient struct {
	service    *drive.Service
	folderName string
	folderID   string
}

// NewDriveClient creates a new Google Drive client
func NewDriveClient(credentialsFile, tokenFile, folderName string) (*DriveClient, error) {
	ctx := context.Background()

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client, err := getClient(config, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %v", err)
	}

	dc := &DriveClient{
		service:    srv,
		folderName: folderName,
	}

	if err := dc.ensureFolder(); err != nil {
		return nil, err
	}

	return dc, nil
}

// getClient builds an HTTP client from a cached oauth token
func getClient(config *oauth2.Config, tokenFile string) (*http.Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf(
			"no cached Drive token at %s; run the OAuth flow once to create it: %v",
			tokenFile, err)
	}
	return config.Client(context.Background(), tok), nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// ensureFolder finds or creates the root folder
func (dc *DriveClient) ensureFolder() error {
	query := fmt.Sprintf("name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false",
		dc.folderName)

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Do()
	if err != nil {
		return fmt.Errorf("unable to search for folder: %v", err)
	}

	if len(r.Files) > 0 {
		dc.folderID = r.Files[0].Id
		return nil
	}

	folder := &drive.File{
		Name:     dc.folderName,
		MimeType: "application/vnd.google-apps.folder",
	}

	file, err := dc.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return fmt.Errorf("unable to create folder: %v", err)
	}

	dc.folderID = file.Id
	return nil
}

// Upload uploads one caption JSON file and returns a shareable link
func (dc *DriveClient) Upload(requestName, captionPath string) (string, error) {
	now := time.Now()
	folderID, err := dc.ensureDateFolder(now)
	if err != nil {
		return "", err
	}

	f, err := os.Open(captionPath)
	if err != nil {
		return "", fmt.Errorf("failed to open caption file: %v", err)
	}
	defer f.Close()

	timestamp := now.Format("20060102_150405")
	captionFile := &drive.File{
		Name:     fmt.Sprintf("%s_%s.json", timestamp, sanitizeFilename(requestName)),
		MimeType: "application/json",
		Parents:  []string{folderID},
	}

	created, err := dc.service.Files.Create(captionFile).Media(f).Fields("id").Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload captions: %v", err)
	}

	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", created.Id), nil
}

// ensureDateFolder creates nested year/month/day folders
func (dc *DriveClient) ensureDateFolder(t time.Time) (string, error) {
	yearID, err := dc.findOrCreateFolder(fmt.Sprintf("%d", t.Year()), dc.folderID)
	if err != nil {
		return "", err
	}

	monthID, err := dc.findOrCreateFolder(fmt.Sprintf("%02d", t.Month()), yearID)
	if err != nil {
		return "", err
	}

	return dc.findOrCreateFolder(fmt.Sprintf("%02d", t.Day()), monthID)
}

// findOrCreateFolder finds or creates a folder with the given parent
func (dc *DriveClient) findOrCreateFolder(name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='application/vnd.google-apps.folder' and trashed=false",
		name, parentID)

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Do()
	if err != nil {
		return "", err
	}

	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder := &drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.folder",
		Parents:  []string{parentID},
	}

	file, err := dc.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return "", err
	}

	return file.Id, nil
}
