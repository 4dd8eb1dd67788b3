// Package mangadex downloads manga from mangadex.org through the official
// MangaDex API v5 (https://api.mangadex.org/docs/).
package mangadex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mangadl/manga-downloader/internal/archive"
	"github.com/mangadl/manga-downloader/internal/connector"
	"github.com/mangadl/manga-downloader/internal/model"
	"github.com/mangadl/manga-downloader/internal/platform"
	"github.com/mangadl/manga-downloader/internal/token"
)

const (
	userAgent = "MangaDL/1.0 (MangaDex Connector)"
	feedLimit = 100

	// the API guidelines allow at most 5 requests per second
	defaultRateLimit       = 250 * time.Millisecond
	defaultPageConcurrency = 3
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Connector implements the capability contract for mangadex.org
type Connector struct {
	httpClient  *http.Client
	apiBase     string
	uploadsBase string
	rate        time.Duration
	packer      archive.Packer
}

// New creates a MangaDex connector with production endpoints
func New() *Connector {
	return &Connector{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		apiBase:     "https://api.mangadex.org",
		uploadsBase: "https://uploads.mangadex.org",
		rate:        defaultRateLimit,
		packer:      archive.NewService(),
	}
}

func (c *Connector) Describe() connector.Descriptor {
	return connector.Descriptor{
		ID:              "mangadex",
		Name:            "MangaDex",
		Version:         "1.0.0",
		Author:          "MangaDL Team",
		Description:     "Download manga from MangaDex using the official API",
		Domains:         []string{"mangadex.org", "www.mangadex.org"},
		ContractVersion: connector.ContractVersion,
		RateLimit:       c.rate,
		PageConcurrency: defaultPageConcurrency,
	}
}

// Matches accepts title URLs on mangadex.org that carry a manga UUID
func (c *Connector) Matches(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	domain := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if domain != "mangadex.org" {
		return false
	}
	return extractMangaID(rawURL) != ""
}

// Normalize rewrites any title URL variant to its canonical form
func (c *Connector) Normalize(rawURL string) string {
	if id := extractMangaID(rawURL); id != "" {
		return "https://mangadex.org/title/" + id
	}
	return rawURL
}

// extractMangaID pulls the manga UUID out of /title/{uuid} or
// /title/{uuid}/slug-name paths. Empty when the path has no valid UUID.
func extractMangaID(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "title" && uuidPattern.MatchString(parts[1]) {
		return strings.ToLower(parts[1])
	}
	return ""
}

// FetchInfo retrieves series metadata from /manga/{id} and the full chapter
// list from the paginated /manga/{id}/feed endpoint.
func (c *Connector) FetchInfo(ctx context.Context, rawURL string) (*model.ContentInfo, error) {
	mangaID := extractMangaID(rawURL)
	if mangaID == "" {
		return nil, &model.ParseError{URL: rawURL, Err: fmt.Errorf("no manga id in url")}
	}

	info, err := c.fetchManga(ctx, mangaID)
	if err != nil {
		return nil, err
	}
	info.URL = rawURL

	chapters, groups, err := c.fetchAllChapters(ctx, mangaID)
	if err != nil {
		return nil, err
	}
	info.Chapters = chapters
	info.Groups = groups
	model.SortChapters(info.Chapters)
	return info, nil
}

// apiManga is the /manga/{id} response shape
type apiManga struct {
	Result string `json:"result"`
	Data   struct {
		ID         string `json:"id"`
		Attributes struct {
			Title            map[string]string `json:"title"`
			Description      map[string]string `json:"description"`
			Status           string            `json:"status"`
			ContentRating    string            `json:"contentRating"`
			OriginalLanguage string            `json:"originalLanguage"`
		} `json:"attributes"`
		Relationships []apiRelationship `json:"relationships"`
	} `json:"data"`
}

type apiRelationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name     string `json:"name"`
		FileName string `json:"fileName"`
	} `json:"attributes"`
}

type apiFeed struct {
	Result string       `json:"result"`
	Data   []apiChapter `json:"data"`
	Total  int          `json:"total"`
}

type apiChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Chapter            string `json:"chapter"`
		Title              string `json:"title"`
		TranslatedLanguage string `json:"translatedLanguage"`
		Pages              int    `json:"pages"`
		ExternalURL        string `json:"externalUrl"`
	} `json:"attributes"`
	Relationships []apiRelationship `json:"relationships"`
}

type apiAtHome struct {
	Result  string `json:"result"`
	BaseURL string `json:"baseUrl"`
	Chapter struct {
		Hash      string   `json:"hash"`
		Data      []string `json:"data"`
		DataSaver []string `json:"dataSaver"`
	} `json:"chapter"`
}

func (c *Connector) fetchManga(ctx context.Context, mangaID string) (*model.ContentInfo, error) {
	params := url.Values{}
	params.Add("includes[]", "cover_art")
	params.Add("includes[]", "author")
	params.Add("includes[]", "artist")
	reqURL := fmt.Sprintf("%s/manga/%s?%s", c.apiBase, mangaID, params.Encode())

	var resp apiManga
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	if resp.Result != "ok" {
		return nil, &model.ParseError{URL: reqURL, Err: fmt.Errorf("api result %q", resp.Result)}
	}

	attrs := resp.Data.Attributes
	info := &model.ContentInfo{
		Title:       preferredLocalized(attrs.Title),
		Description: preferredLocalized(attrs.Description),
		Status:      attrs.Status,
		Extra: map[string]string{
			"manga_id":          mangaID,
			"content_rating":    attrs.ContentRating,
			"original_language": attrs.OriginalLanguage,
		},
	}
	for _, rel := range resp.Data.Relationships {
		switch rel.Type {
		case "author":
			info.Author = rel.Attributes.Name
		case "artist":
			info.Artist = rel.Attributes.Name
		case "cover_art":
			if rel.Attributes.FileName != "" {
				info.CoverURL = fmt.Sprintf("%s/covers/%s/%s", c.uploadsBase, mangaID, rel.Attributes.FileName)
			}
		}
	}
	return info, nil
}

func (c *Connector) fetchAllChapters(ctx context.Context, mangaID string) ([]model.Chapter, []model.Group, error) {
	var chapters []model.Chapter
	groups := make(map[string]model.Group)

	for offset := 0; ; {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(feedLimit))
		params.Set("offset", strconv.Itoa(offset))
		params.Set("order[chapter]", "asc")
		params.Add("includes[]", "scanlation_group")
		for _, rating := range []string{"safe", "suggestive", "erotica", "pornographic"} {
			params.Add("contentRating[]", rating)
		}
		reqURL := fmt.Sprintf("%s/manga/%s/feed?%s", c.apiBase, mangaID, params.Encode())

		var feed apiFeed
		if err := c.getJSON(ctx, reqURL, &feed); err != nil {
			return nil, nil, err
		}
		if feed.Result != "ok" {
			return nil, nil, &model.ParseError{URL: reqURL, Err: fmt.Errorf("api result %q", feed.Result)}
		}
		if len(feed.Data) == 0 {
			break
		}

		for _, raw := range feed.Data {
			chapter, group, ok := parseChapter(raw)
			if !ok {
				continue
			}
			chapters = append(chapters, chapter)
			groups[group.ID] = group
		}

		offset += feedLimit
		if offset >= feed.Total {
			break
		}
		if c.rate > 0 {
			time.Sleep(c.rate)
		}
	}

	ordered := make([]model.Group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
	return chapters, ordered, nil
}

// parseChapter converts one feed entry. Chapters hosted off-site carry an
// external URL and no pages, so they are skipped. Oneshots and unnumbered
// chapters get number 0.
func parseChapter(raw apiChapter) (model.Chapter, model.Group, bool) {
	attrs := raw.Attributes
	if attrs.ExternalURL != "" {
		return model.Chapter{}, model.Group{}, false
	}

	number := 0.0
	if attrs.Chapter != "" {
		if n, err := strconv.ParseFloat(attrs.Chapter, 64); err == nil {
			number = n
		}
	}

	language := attrs.TranslatedLanguage
	if language == "" {
		language = "en"
	}

	group := model.Group{ID: "no_group", Name: "No Group", Language: language}
	for _, rel := range raw.Relationships {
		if rel.Type == "scanlation_group" {
			group = model.Group{ID: rel.ID, Name: rel.Attributes.Name, Language: language}
			if group.Name == "" {
				group.Name = "Unknown Group"
			}
			break
		}
	}

	title := attrs.Title
	if title == "" {
		title = fmt.Sprintf("Chapter %g", number)
	}

	return model.Chapter{
		ID:        raw.ID,
		Number:    number,
		Title:     title,
		URL:       "https://mangadex.org/chapter/" + raw.ID,
		GroupID:   group.ID,
		Language:  language,
		PageCount: attrs.Pages,
	}, group, true
}

// preferredLocalized picks a display string from a localized map, preferring
// English, then romanized and native Japanese, then the lexicographically
// first remaining locale so the choice is stable.
func preferredLocalized(localized map[string]string) string {
	for _, lang := range []string{"en", "ja-ro", "ja"} {
		if v := localized[lang]; v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(localized))
	for k := range localized {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := localized[k]; v != "" {
			return v
		}
	}
	return "Unknown"
}

func (c *Connector) DescribeOptions(info *model.ContentInfo) model.OptionsSchema {
	return model.OptionsSchema{Fields: []model.OptionField{
		{
			Key:         "data_saver",
			Label:       "Data Saver",
			Kind:        model.FieldCheckbox,
			Default:     false,
			Description: "Use compressed images (smaller file size, lower quality)",
		},
		{
			Key:         "format",
			Label:       "Format",
			Kind:        model.FieldDropdown,
			Choices:     []string{archive.FormatCBZ, archive.FormatZIP, archive.FormatFolder},
			Default:     archive.FormatCBZ,
			Description: "Output format for downloaded chapters",
		},
		{
			Key:         "concurrent_pages",
			Label:       "Concurrent Page Downloads",
			Kind:        model.FieldNumber,
			Default:     defaultPageConcurrency,
			Min:         1,
			Max:         5,
			Step:        1,
			Description: "Number of pages to download simultaneously",
		},
	}}
}

func (c *Connector) BuildPlan(rawURL string, info *model.ContentInfo, sel model.Selection, opts map[string]any) (*model.DownloadPlan, error) {
	if sel.GroupID != "" && sel.GroupID != "no_group" {
		if _, ok := info.GroupByID(sel.GroupID); !ok {
			return nil, &model.SelectionError{Reason: fmt.Sprintf("unknown group %q", sel.GroupID)}
		}
	}
	chapters := sel.Filter(info.Chapters)
	if len(chapters) == 0 {
		return nil, &model.SelectionError{Reason: "selection matches no chapters"}
	}
	return &model.DownloadPlan{
		Title:    info.Title,
		Chapters: chapters,
		Options:  opts,
	}, nil
}

// Execute downloads every chapter in the plan. For each chapter it resolves
// the at-home server, fetches the pages with bounded concurrency, and packs
// the result when an archive format is selected. The token is polled before
// each chapter and each page; pause is honoured at chapter boundaries so a
// resumed job restarts cleanly at the first unfinished chapter.
func (c *Connector) Execute(ctx context.Context, plan *model.DownloadPlan, sink connector.ProgressSink, tok *token.Token) error {
	seriesDir := filepath.Join(plan.OutputDir, platform.SanitizeFilename(plan.Title))
	if err := platform.CreateDirectoryIfNotExists(seriesDir); err != nil {
		return &model.IOError{Path: seriesDir, Err: err}
	}

	dataSaver := optBool(plan.Options, "data_saver")
	format := optString(plan.Options, "format", archive.FormatCBZ)
	workers := optInt(plan.Options, "concurrent_pages", defaultPageConcurrency)
	if workers < 1 {
		workers = 1
	}

	for _, ch := range plan.Chapters {
		if err := tok.Err(); err != nil {
			return err
		}
		sink.Log("info", fmt.Sprintf("downloading %s", platform.ChapterDirName(ch.Number)))
		if err := c.downloadChapter(ctx, seriesDir, ch, dataSaver, format, workers, sink, tok); err != nil {
			return err
		}
		if c.rate > 0 {
			select {
			case <-time.After(2 * c.rate):
			case <-tok.Cancelled():
				return model.ErrCancelled
			case <-tok.Paused():
				return model.ErrPaused
			}
		}
	}
	return nil
}

func (c *Connector) downloadChapter(ctx context.Context, seriesDir string, ch model.Chapter, dataSaver bool, format string, workers int, sink connector.ProgressSink, tok *token.Token) error {
	server, err := c.atHomeServer(ctx, ch.ID)
	if err != nil {
		return err
	}

	pages, quality := server.Chapter.Data, "data"
	if dataSaver && len(server.Chapter.DataSaver) > 0 {
		pages, quality = server.Chapter.DataSaver, "data-saver"
	}
	if len(pages) == 0 {
		return &model.ParseError{URL: ch.URL, Err: fmt.Errorf("chapter has no pages")}
	}

	chapterDir := filepath.Join(seriesDir, platform.ChapterDirName(ch.Number))
	if err := platform.CreateDirectoryIfNotExists(chapterDir); err != nil {
		return &model.IOError{Path: chapterDir, Err: err}
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		firstErr   error
		done       int
		finalBytes int64
	)
	total := len(pages)
	files := make([]string, total)
	sem := make(chan struct{}, workers)

	for i, name := range pages {
		if tok.Poll() == token.SignalCancelled {
			break
		}
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, filename string) {
			defer wg.Done()
			defer func() { <-sem }()
			if tok.Poll() == token.SignalCancelled {
				return
			}

			pageURL := fmt.Sprintf("%s/%s/%s/%s", server.BaseURL, quality, server.Chapter.Hash, filename)
			path := filepath.Join(chapterDir, platform.PageFileName(idx+1, filepath.Ext(filename)))
			n, err := c.downloadPage(ctx, pageURL, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			files[idx] = path
			done++
			if done == total {
				// held back until the chapter is fully written on disk
				finalBytes = n
				return
			}
			sink.Progress(ch.Number, done, total, n)
		}(i, name)

		if c.rate > 0 {
			time.Sleep(c.rate)
		}
	}
	wg.Wait()

	if tok.Poll() == token.SignalCancelled {
		return model.ErrCancelled
	}
	if firstErr != nil {
		return firstErr
	}

	if ext := archive.Extension(format); ext != "" {
		archivePath := filepath.Join(seriesDir, platform.ChapterDirName(ch.Number)+ext)
		if err := c.packer.Pack(archivePath, files, true); err != nil {
			return &model.IOError{Path: archivePath, Err: err}
		}
	}

	sink.Progress(ch.Number, total, total, finalBytes)
	return nil
}

func (c *Connector) atHomeServer(ctx context.Context, chapterID string) (*apiAtHome, error) {
	reqURL := fmt.Sprintf("%s/at-home/server/%s", c.apiBase, chapterID)
	var resp apiAtHome
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	if resp.Result != "ok" || resp.BaseURL == "" {
		return nil, &model.ParseError{URL: reqURL, Err: fmt.Errorf("api result %q", resp.Result)}
	}
	return &resp, nil
}

// downloadPage streams one page image to disk, returning the byte count
func (c *Connector) downloadPage(ctx context.Context, pageURL, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return 0, &model.FetchError{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &model.FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, &model.FetchError{URL: pageURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, &model.IOError{Path: path, Err: err}
	}
	n, err := io.Copy(out, resp.Body)
	if err != nil {
		out.Close()
		os.Remove(path)
		return 0, &model.FetchError{URL: pageURL, Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return 0, &model.IOError{Path: path, Err: err}
	}
	return n, nil
}

func (c *Connector) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &model.FetchError{URL: reqURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.FetchError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.FetchError{URL: reqURL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &model.FetchError{URL: reqURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &model.ParseError{URL: reqURL, Err: err}
	}
	return nil
}

// option readers tolerant of JSON-decoded numerics

func optBool(opts map[string]any, key string) bool {
	v, ok := opts[key].(bool)
	return ok && v
}

func optString(opts map[string]any, key, fallback string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func optInt(opts map[string]any, key string, fallback int) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
