// Package qbt is a minimal client for the qBittorrent WebUI API v2, covering
// the calls the acquisition pipeline needs.
package qbt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zilezarach/torrentcli/internal/logctx"
)

type Client struct {
	BaseURL    string
	Username   string
	Password   string
	httpClient *http.Client
	Insecure   bool   // skip TLS verification if true
	sid        string // session cookie issued by auth/login
}

// Torrent mirrors the fields of /torrents/info entries this tool acts on.
type Torrent struct {
	Hash     string  `json:"hash"`
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Dlspeed  int64   `json:"dlspeed"`
	Upspeed  int64   `json:"upspeed"`
	Size     int64   `json:"size"`
	Ratio    float64 `json:"ratio"`
	SavePath string  `json:"save_path"`
}

// IsSeeding reports whether the torrent has finished downloading and moved
// into an upload-side state.
func (t *Torrent) IsSeeding() bool {
	switch t.State {
	case "uploading", "stalledUP", "queuedUP":
		return true
	}

	return false
}

func (t *Torrent) Errored() bool {
	return t.State == "error"
}

// FetchingMetadata reports the pre-download phase where qBittorrent is still
// resolving the magnet's metadata.
func (t *Torrent) FetchingMetadata() bool {
	return t.State == "metaDL"
}

func NewClient(baseURL, username, password string, insecure ...bool) *Client {
	client := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Username:   username,
		Password:   password,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	if len(insecure) > 0 && insecure[0] {
		tr := &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		client.httpClient.Transport = tr
		client.Insecure = true
	}

	return client
}

// Login authenticates against the WebUI and stores the SID session cookie.
// qBittorrent answers 200 with the literal body "Fails." on bad credentials.
func (c *Client) Login(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx).With("method", "auth.login")

	form := url.Values{
		"username": {c.Username},
		"password": {c.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("HTTP error", "err", err)

		return fmt.Errorf("connecting to qbittorrent: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) == "Fails." {
		return fmt.Errorf("qbittorrent login rejected for user %q", c.Username)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "SID" {
			c.sid = cookie.Value
		}
	}

	if c.sid == "" {
		return fmt.Errorf("qbittorrent login returned no session cookie")
	}

	logger.Debug("authenticated with qbittorrent")

	return nil
}

// Torrents lists torrents matching the given WebUI filter (for example
// "downloading"). An empty filter lists everything.
func (c *Client) Torrents(ctx context.Context, filter string) ([]Torrent, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}

	return c.torrentsInfo(ctx, q)
}

// TorrentsByHashes looks up specific torrents by their info-hashes.
func (c *Client) TorrentsByHashes(ctx context.Context, hashes ...string) ([]Torrent, error) {
	q := url.Values{"hashes": {strings.Join(hashes, "|")}}

	return c.torrentsInfo(ctx, q)
}

func (c *Client) torrentsInfo(ctx context.Context, q url.Values) ([]Torrent, error) {
	body, err := c.get(ctx, "/api/v2/torrents/info", q)
	if err != nil {
		return nil, err
	}

	var torrents []Torrent
	if err := json.Unmarshal(body, &torrents); err != nil {
		return nil, fmt.Errorf("decoding torrents list: %w", err)
	}

	return torrents, nil
}

// AddOptions carries the submission parameters for a new torrent.
type AddOptions struct {
	URL      string
	SavePath string
}

// Add submits a magnet or torrent URL to the daemon. Automatic torrent
// management is disabled so the save path is honored verbatim.
func (c *Client) Add(ctx context.Context, opts AddOptions) error {
	form := url.Values{
		"urls":               {opts.URL},
		"autoTMM":            {"false"},
		"sequentialDownload": {"false"},
		"firstLastPiecePrio": {"false"},
	}
	if opts.SavePath != "" {
		form.Set("savepath", opts.SavePath)
	}

	_, err := c.postForm(ctx, "/api/v2/torrents/add", form)

	return err
}

func (c *Client) Pause(ctx context.Context, hashes ...string) error {
	return c.hashAction(ctx, "/api/v2/torrents/pause", hashes)
}

func (c *Client) Resume(ctx context.Context, hashes ...string) error {
	return c.hashAction(ctx, "/api/v2/torrents/resume", hashes)
}

// Delete removes torrents from the daemon. When keepFiles is true the
// downloaded data stays on disk.
func (c *Client) Delete(ctx context.Context, keepFiles bool, hashes ...string) error {
	form := url.Values{
		"hashes":      {strings.Join(hashes, "|")},
		"deleteFiles": {strconv.FormatBool(!keepFiles)},
	}

	_, err := c.postForm(ctx, "/api/v2/torrents/delete", form)

	return err
}

// Priority levels accepted by SetPriority.
const (
	PriorityTop    = "top"
	PriorityUp     = "up"
	PriorityDown   = "down"
	PriorityBottom = "bottom"
)

func (c *Client) SetPriority(ctx context.Context, level string, hashes ...string) error {
	var endpoint string

	switch level {
	case PriorityTop:
		endpoint = "/api/v2/torrents/topPrio"
	case PriorityUp:
		endpoint = "/api/v2/torrents/increasePrio"
	case PriorityDown:
		endpoint = "/api/v2/torrents/decreasePrio"
	case PriorityBottom:
		endpoint = "/api/v2/torrents/bottomPrio"
	default:
		return fmt.Errorf("unknown priority level %q", level)
	}

	return c.hashAction(ctx, endpoint, hashes)
}

// FindByName returns all torrents whose name contains the given fragment,
// case-insensitively.
func (c *Client) FindByName(ctx context.Context, fragment string) ([]Torrent, error) {
	torrents, err := c.Torrents(ctx, "")
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(fragment)

	var matched []Torrent

	for _, t := range torrents {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			matched = append(matched, t)
		}
	}

	return matched, nil
}

func (c *Client) hashAction(ctx context.Context, endpoint string, hashes []string) error {
	form := url.Values{"hashes": {strings.Join(hashes, "|")}}

	_, err := c.postForm(ctx, endpoint, form)

	return err
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	u := c.BaseURL + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	return c.do(req, endpoint)
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, endpoint)
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	if c.sid != "" {
		req.AddCookie(&http.Cookie{Name: "SID", Value: c.sid})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling qbittorrent %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading qbittorrent %s response: %w", endpoint, err)
	}

	if resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("qbittorrent session expired on %s", endpoint)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qbittorrent %s returned status %d", endpoint, resp.StatusCode)
	}

	return body, nil
}
