package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nexuscloud/drivesync/internal/client/models"
	"github.com/nexuscloud/drivesync/internal/common"
)

// refreshLeeway is how long before token expiry the client refreshes
// proactively, so a request never departs with a token about to lapse.
const refreshLeeway = 30 * time.Second

// HTTPClient implements Service against the drive REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetTokens installs the bearer tokens obtained at login.
func (c *HTTPClient) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
}

// Login authenticates with the password flow and installs the returned
// tokens on the client. The password is not retained.
func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) error {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", string(password))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.mapError(resp)
	}

	var tokens tokenPairDTO
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("%w: malformed login response: %v", common.ErrNetwork, err)
	}
	c.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	return nil
}

// Register creates an account. The caller logs in separately afterwards.
func (c *HTTPClient) Register(ctx context.Context, email, fullName string, password []byte) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/register", map[string]string{
		"email":     email,
		"full_name": fullName,
		"password":  string(password),
	}, nil)
}

// nodeDTO is the wire shape of a drive record.
type nodeDTO struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	FolderID   string    `json:"folder_id"`
	OwnerID    string    `json:"owner_id"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	ChildCount int       `json:"child_count"`
	Color      string    `json:"color"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	IsTrashed  bool      `json:"is_trashed"`
	IsShared   bool      `json:"is_shared"`
	IsStarred  bool      `json:"is_starred"`
}

func (d *nodeDTO) toNode() *models.Node {
	kind := models.KindFile
	if d.Type == string(models.KindFolder) {
		kind = models.KindFolder
	}
	return &models.Node{
		ID:         models.NormalizeID(d.ID),
		Kind:       kind,
		Name:       d.Name,
		ParentID:   models.NormalizeID(d.FolderID),
		OwnerID:    d.OwnerID,
		Size:       d.Size,
		MimeType:   d.MimeType,
		ChildCount: d.ChildCount,
		Color:      d.Color,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		Trashed:    d.IsTrashed,
		Shared:     d.IsShared,
		Starred:    d.IsStarred,
		SyncState:  models.StateSynced,
	}
}

type listingDTO struct {
	Folders     []*nodeDTO   `json:"folders"`
	Files       []*nodeDTO   `json:"files"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs"`
}

type tokenPairDTO struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// errorDTO is the structured error body every endpoint may return.
type errorDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (c *HTTPClient) List(ctx context.Context, folderID string) (*Listing, error) {
	path := "/drive/folders/root"
	if folderID != models.RootID {
		path = "/drive/folders/" + folderID
	}

	var dto listingDTO
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return nil, err
	}

	listing := &Listing{Breadcrumbs: dto.Breadcrumbs}
	for _, f := range dto.Folders {
		listing.Folders = append(listing.Folders, f.toNode())
	}
	for _, f := range dto.Files {
		listing.Files = append(listing.Files, f.toNode())
	}
	return listing, nil
}

func (c *HTTPClient) ListShared(ctx context.Context) ([]*models.Node, error) {
	return c.listFlat(ctx, "/drive/shared")
}

func (c *HTTPClient) ListTrashed(ctx context.Context) ([]*models.Node, error) {
	return c.listFlat(ctx, "/drive/trash")
}

func (c *HTTPClient) listFlat(ctx context.Context, path string) ([]*models.Node, error) {
	var dtos []*nodeDTO
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, err
	}
	nodes := make([]*models.Node, 0, len(dtos))
	for _, d := range dtos {
		nodes = append(nodes, d.toNode())
	}
	return nodes, nil
}

func (c *HTTPClient) Create(ctx context.Context, name, parentID string) (*models.Node, error) {
	body := map[string]any{"name": name, "parent_id": parentID}
	var dto nodeDTO
	if err := c.doJSON(ctx, http.MethodPost, "/drive/folders/", body, &dto); err != nil {
		return nil, err
	}
	return dto.toNode(), nil
}

func (c *HTTPClient) Rename(ctx context.Context, id, newName string) (*models.Node, error) {
	body := map[string]any{"name": newName}
	var dto nodeDTO
	if err := c.doJSON(ctx, http.MethodPatch, "/drive/items/"+id, body, &dto); err != nil {
		return nil, err
	}
	return dto.toNode(), nil
}

func (c *HTTPClient) Move(ctx context.Context, id, destFolderID string) (*models.Node, error) {
	body := map[string]any{"destination_id": destFolderID}
	var dto nodeDTO
	if err := c.doJSON(ctx, http.MethodPatch, "/drive/items/"+id+"/move", body, &dto); err != nil {
		return nil, err
	}
	return dto.toNode(), nil
}

func (c *HTTPClient) Star(ctx context.Context, id string, starred bool) (*models.Node, error) {
	body := map[string]any{"starred": starred}
	var dto nodeDTO
	if err := c.doJSON(ctx, http.MethodPatch, "/drive/items/"+id+"/star", body, &dto); err != nil {
		return nil, err
	}
	return dto.toNode(), nil
}

func (c *HTTPClient) SoftDelete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/drive/items/"+id+"/trash", nil, nil)
}

func (c *HTTPClient) Restore(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/drive/items/"+id+"/restore", nil, nil)
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/drive/items/"+id, nil, nil)
}

func (c *HTTPClient) Share(ctx context.Context, id, recipient string) error {
	body := map[string]any{"recipient": recipient}
	return c.doJSON(ctx, http.MethodPost, "/drive/items/"+id+"/share", body, nil)
}

func (c *HTTPClient) UploadBytes(ctx context.Context, blob []byte, meta UploadMeta, onProgress ProgressFunc) (*models.Node, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"folder_id": meta.FolderID,
		"name":      meta.Name,
		"mime_type": meta.MimeType,
		"size":      strconv.FormatInt(meta.Size, 10),
		"iv":        base64.StdEncoding.EncodeToString(meta.IV),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("building upload form: %w", err)
		}
	}

	part, err := w.CreateFormFile("file", meta.Name)
	if err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(blob); err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}

	body := io.Reader(&buf)
	if onProgress != nil {
		body = &progressReader{r: body, total: int64(buf.Len()), onProgress: onProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/drive/files/upload", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.ContentLength = int64(buf.Len())

	var dto nodeDTO
	if err := c.send(req, &dto); err != nil {
		return nil, err
	}
	return dto.toNode(), nil
}

// RegisterUpload records a blob already transmitted to the storage gateway
// (see S3Transport) and returns the authoritative record.
func (c *HTTPClient) RegisterUpload(ctx context.Context, meta UploadMeta, objectKey string) (*models.Node, error) {
	body := map[string]any{
		"object_key": objectKey,
		"folder_id":  meta.FolderID,
		"name":       meta.Name,
		"mime_type":  meta.MimeType,
		"size":       meta.Size,
		"iv":         base64.StdEncoding.EncodeToString(meta.IV),
	}
	var dto nodeDTO
	if err := c.doJSON(ctx, http.MethodPost, "/drive/files/register", body, &dto); err != nil {
		return nil, err
	}
	return dto.toNode(), nil
}

// doJSON runs one JSON request/response round-trip against path.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *HTTPClient) send(req *http.Request, out any) error {
	token, err := c.bearerToken(req.Context())
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.mapError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", common.ErrNetwork, err)
	}
	return nil
}

// bearerToken returns the current access token, refreshing it first when it
// is within refreshLeeway of expiry.
func (c *HTTPClient) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	access, refresh := c.accessToken, c.refreshToken
	c.mu.Unlock()

	if access == "" || refresh == "" || !tokenNeedsRefresh(access) {
		return access, nil
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refresh})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// Refresh rejected: fall back to the stale token and let the server
		// answer 401, which surfaces as ErrUnauthorized.
		return access, nil
	}

	var tokens tokenPairDTO
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", fmt.Errorf("%w: malformed refresh response: %v", common.ErrNetwork, err)
	}

	c.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	return tokens.AccessToken, nil
}

// tokenNeedsRefresh inspects the unverified exp claim. Verification is the
// server's job; the client only schedules the refresh.
func tokenNeedsRefresh(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < refreshLeeway
}

// mapError folds an HTTP error response into the sentinel taxonomy.
func (c *HTTPClient) mapError(resp *http.Response) error {
	var dto errorDTO
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&dto)

	msg := dto.Message
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, msg)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", common.ErrNotFound, msg)
	case resp.StatusCode == http.StatusConflict || dto.Kind == "conflict":
		return fmt.Errorf("%w: %s", common.ErrConflict, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", common.ErrNetwork, msg)
	default:
		return fmt.Errorf("%w: %s", common.ErrValidation, msg)
	}
}

// progressReader reports the consumed fraction of a fixed-size body.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.onProgress(float64(p.read) / float64(p.total))
	}
	return n, err
}
