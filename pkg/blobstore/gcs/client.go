// Package gcs implements blobstore.Store against the Google Cloud
// Storage JSON API. Auth uses a service account key when configured and
// falls back to the GCE metadata server.
package gcs

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pinielabera/thriftndrift-backend/pkg/blobstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
)

const (
	tokenEndpoint = "https://oauth2.googleapis.com/token"
	scope         = "https://www.googleapis.com/auth/devstorage.read_write"
	apiBase       = "https://storage.googleapis.com/storage/v1"
	uploadBase    = "https://storage.googleapis.com/upload/storage/v1"
	pingTimeout   = 5 * time.Second
	metadataToken = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"
)

// Client talks to one GCS bucket.
type Client struct {
	httpClient  *http.Client
	bucket      string
	publicHost  string
	tokenSource *tokenSource
}

var _ blobstore.Store = (*Client)(nil)

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewClient builds a Client and verifies bucket access.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var ts *tokenSource
	var err error
	switch {
	case gcp.CredentialsJSON != "":
		ts, err = newServiceAccountTokenSource(httpClient, gcp.CredentialsJSON)
	case gcp.ApplicationCredentials != "":
		raw, readErr := os.ReadFile(gcp.ApplicationCredentials)
		if readErr != nil {
			return nil, fmt.Errorf("reading credentials file: %w", readErr)
		}
		ts, err = newServiceAccountTokenSource(httpClient, string(raw))
	default:
		ts = newMetadataTokenSource(httpClient)
	}
	if err != nil {
		return nil, err
	}

	client := &Client{
		httpClient:  httpClient,
		bucket:      cfg.BucketName,
		publicHost:  strings.TrimSuffix(cfg.PublicHost, "/"),
		tokenSource: ts,
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}

	return client, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Close exists for symmetry with other clients.
func (c *Client) Close() error {
	return nil
}

// Ping verifies the bucket is reachable with the current credentials.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokenSource == nil {
		return errors.New("gcs client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/b/%s/o?maxResults=1", apiBase, url.PathEscape(c.bucket))
	resp, err := c.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp, "gcs bucket check failed")
	}
	return nil
}

// Put uploads a blob and its metadata in one multipart request.
func (c *Client) Put(ctx context.Context, path, contentType string, metadata map[string]string, body io.Reader) (blobstore.Object, error) {
	meta := map[string]any{
		"name":        path,
		"contentType": contentType,
	}
	if len(metadata) > 0 {
		meta["metadata"] = metadata
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return blobstore.Object{}, apperrors.Wrap(apperrors.CodeInternal, err, "encoding object metadata")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaPart, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return blobstore.Object{}, apperrors.Wrap(apperrors.CodeInternal, err, "building upload request")
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return blobstore.Object{}, apperrors.Wrap(apperrors.CodeInternal, err, "building upload request")
	}

	dataPart, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return blobstore.Object{}, apperrors.Wrap(apperrors.CodeInternal, err, "building upload request")
	}
	if _, err := io.Copy(dataPart, body); err != nil {
		return blobstore.Object{}, apperrors.Wrap(apperrors.CodeUploadFailed, err, "reading blob body")
	}
	if err := writer.Close(); err != nil {
		return blobstore.Object{}, apperrors.Wrap(apperrors.CodeInternal, err, "building upload request")
	}

	u := fmt.Sprintf("%s/b/%s/o?uploadType=multipart", uploadBase, url.PathEscape(c.bucket))
	resp, err := c.do(ctx, http.MethodPost, u, "multipart/related; boundary="+writer.Boundary(), &buf)
	if err != nil {
		return blobstore.Object{}, apperrors.Wrap(apperrors.CodeUploadFailed, err, "uploading "+path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return blobstore.Object{}, apperrors.Wrap(apperrors.CodeUploadFailed, readAPIError(resp, "uploading "+path), "uploading "+path)
	}

	var apiObj apiObject
	if err := json.NewDecoder(resp.Body).Decode(&apiObj); err != nil {
		return blobstore.Object{}, apperrors.Wrap(apperrors.CodeUploadFailed, err, "decoding upload response")
	}
	return apiObj.toObject(), nil
}

// Get downloads a blob and its metadata.
func (c *Client) Get(ctx context.Context, path string) (blobstore.Object, io.ReadCloser, error) {
	metaURL := fmt.Sprintf("%s/b/%s/o/%s", apiBase, url.PathEscape(c.bucket), url.PathEscape(path))
	metaResp, err := c.do(ctx, http.MethodGet, metaURL, "", nil)
	if err != nil {
		return blobstore.Object{}, nil, apperrors.Wrap(apperrors.CodeDependency, err, "reading blob "+path)
	}
	defer func() { _ = metaResp.Body.Close() }()

	if metaResp.StatusCode == http.StatusNotFound {
		return blobstore.Object{}, nil, apperrors.New(apperrors.CodeNotFound, "blob "+path+" not found")
	}
	if metaResp.StatusCode != http.StatusOK {
		return blobstore.Object{}, nil, readAPIError(metaResp, "reading blob "+path)
	}

	var apiObj apiObject
	if err := json.NewDecoder(metaResp.Body).Decode(&apiObj); err != nil {
		return blobstore.Object{}, nil, apperrors.Wrap(apperrors.CodeDependency, err, "decoding blob metadata")
	}

	mediaResp, err := c.do(ctx, http.MethodGet, metaURL+"?alt=media", "", nil)
	if err != nil {
		return blobstore.Object{}, nil, apperrors.Wrap(apperrors.CodeDependency, err, "downloading blob "+path)
	}
	if mediaResp.StatusCode != http.StatusOK {
		defer func() { _ = mediaResp.Body.Close() }()
		return blobstore.Object{}, nil, readAPIError(mediaResp, "downloading blob "+path)
	}

	return apiObj.toObject(), mediaResp.Body, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (c *Client) Delete(ctx context.Context, path string) error {
	u := fmt.Sprintf("%s/b/%s/o/%s", apiBase, url.PathEscape(c.bucket), url.PathEscape(path))
	resp, err := c.do(ctx, http.MethodDelete, u, "", nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "deleting blob "+path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return nil
	}
	return readAPIError(resp, "deleting blob "+path)
}

// List returns all objects under prefix, following result pages.
func (c *Client) List(ctx context.Context, prefix string) ([]blobstore.Object, error) {
	var out []blobstore.Object
	pageToken := ""
	for {
		u := fmt.Sprintf(
			"%s/b/%s/o?prefix=%s&fields=items(name,size,contentType,metadata),nextPageToken",
			apiBase, url.PathEscape(c.bucket), url.QueryEscape(prefix),
		)
		if pageToken != "" {
			u += "&pageToken=" + url.QueryEscape(pageToken)
		}

		resp, err := c.do(ctx, http.MethodGet, u, "", nil)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDependency, err, "listing blobs under "+prefix)
		}

		if resp.StatusCode != http.StatusOK {
			err := readAPIError(resp, "listing blobs under "+prefix)
			_ = resp.Body.Close()
			return nil, err
		}

		var page struct {
			Items         []apiObject `json:"items"`
			NextPageToken string      `json:"nextPageToken"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		_ = resp.Body.Close()
		if decodeErr != nil {
			return nil, apperrors.Wrap(apperrors.CodeDependency, decodeErr, "decoding blob listing")
		}

		for _, item := range page.Items {
			out = append(out, item.toObject())
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// MetadataExists scans objects under prefix for a metadata match.
func (c *Client) MetadataExists(ctx context.Context, prefix, key, value string) (bool, error) {
	objects, err := c.List(ctx, prefix)
	if err != nil {
		return false, err
	}
	for _, obj := range objects {
		if obj.Metadata[key] == value {
			return true, nil
		}
	}
	return false, nil
}

// URL returns the public download URL for a stored object.
func (c *Client) URL(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.publicHost, c.bucket, path)
}

func (c *Client) do(ctx context.Context, method, u, contentType string, body io.Reader) (*http.Response, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.httpClient.Do(req)
}

type apiObject struct {
	Name        string            `json:"name"`
	Size        string            `json:"size"`
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata"`
}

func (o apiObject) toObject() blobstore.Object {
	size, _ := strconv.ParseInt(o.Size, 10, 64)
	return blobstore.Object{
		Path:        o.Name,
		Size:        size,
		ContentType: o.ContentType,
		Metadata:    o.Metadata,
	}
}

func readAPIError(resp *http.Response, msg string) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if len(b) > 0 {
		return fmt.Errorf("%s: %s: %s", msg, resp.Status, strings.TrimSpace(string(b)))
	}
	return fmt.Errorf("%s: %s", msg, resp.Status)
}

type tokenSource struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
	fetch  func(context.Context) (string, time.Time, error)
}

func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Until(t.expiry) > time.Minute {
		return t.token, nil
	}

	token, expiry, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	t.token = token
	t.expiry = expiry
	return token, nil
}

func newServiceAccountTokenSource(client *http.Client, jsonCreds string) (*tokenSource, error) {
	var creds struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
		TokenURI    string `json:"token_uri"`
	}
	if err := json.Unmarshal([]byte(jsonCreds), &creds); err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, errors.New("invalid service account credentials")
	}
	tokenURI := creds.TokenURI
	if tokenURI == "" {
		tokenURI = tokenEndpoint
	}
	priv, err := parsePrivateKey(creds.PrivateKey)
	if err != nil {
		return nil, err
	}

	return &tokenSource{
		fetch: func(ctx context.Context) (string, time.Time, error) {
			return fetchServiceAccountToken(ctx, client, creds.ClientEmail, priv, tokenURI)
		},
	}, nil
}

func newMetadataTokenSource(client *http.Client) *tokenSource {
	return &tokenSource{
		fetch: func(ctx context.Context) (string, time.Time, error) {
			return fetchMetadataToken(ctx, client)
		},
	}
}

func fetchServiceAccountToken(ctx context.Context, client *http.Client, email string, key *rsa.PrivateKey, tokenURI string) (string, time.Time, error) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	now := time.Now()
	claims := map[string]any{
		"iss":   email,
		"scope": scope,
		"aud":   tokenURI,
		"exp":   now.Add(time.Hour).Unix(),
		"iat":   now.Unix(),
	}
	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	unsigned := header + "." + payload
	signature, err := signJWT(unsigned, key)
	if err != nil {
		return "", time.Time{}, err
	}
	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", unsigned+"."+signature)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", time.Time{}, err
	}

	return tokenResp.AccessToken, time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second), nil
}

func fetchMetadataToken(ctx context.Context, client *http.Client) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataToken, nil)
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Metadata-Flavor", "Google")
	resp, err := client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("metadata token request returned %s", resp.Status)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", time.Time{}, err
	}

	return tokenResp.AccessToken, time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second), nil
}

func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("invalid private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		if priv, ok := key.(*rsa.PrivateKey); ok {
			return priv, nil
		}
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.New("unsupported private key format")
	}
	return priv, nil
}

func signJWT(unsigned string, key *rsa.PrivateKey) (string, error) {
	hash := sha256.Sum256([]byte(unsigned))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(signature), nil
}
