package dashboard

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/example/receipt-console/internal/backend"
	"github.com/example/receipt-console/internal/feed"
	"github.com/example/receipt-console/internal/receipt"
	"github.com/example/receipt-console/internal/session"
)

// maxUploadSize caps a whole multipart upload batch (50MB, matching what
// high-resolution phone photos need)
const maxUploadSize = 50 << 20

// pageTab is one of the four dashboard views
type pageTab struct {
	Key    string
	Label  string
	Status receipt.Tab
	View   receipt.Tab
}

var pageTabs = []pageTab{
	{Key: "upload", Label: "Upload", Status: receipt.TabUploaded, View: receipt.TabUploaded},
	{Key: "validate", Label: "Validate", Status: receipt.TabValidate, View: receipt.TabValidate},
	{Key: "process", Label: "Process", Status: receipt.TabProcessed, View: receipt.TabProcessed},
	{Key: "receipts", Label: "Receipts", Status: receipt.TabFinal, View: receipt.TabFinal},
}

func tabByKey(key string) pageTab {
	for _, t := range pageTabs {
		if t.Key == key {
			return t
		}
	}
	return pageTabs[0]
}

// flash carries one-shot notices between a redirect and the next render
type flash struct {
	Notice string
	Error  string
}

func flashFromQuery(r *http.Request) flash {
	return flash{
		Notice: r.URL.Query().Get("notice"),
		Error:  r.URL.Query().Get("error"),
	}
}

// redirectTo sends the browser to a tab with an optional notice or error
func redirectTo(w http.ResponseWriter, r *http.Request, tab, notice, errMsg string) {
	values := url.Values{}
	if tab != "" {
		values.Set("tab", tab)
	}
	if notice != "" {
		values.Set("notice", notice)
	}
	if errMsg != "" {
		values.Set("error", errMsg)
	}
	target := "/"
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// unauthorized reports whether an error means the session is gone and the
// user has to log in again
func unauthorized(err error) bool {
	if errors.Is(err, session.ErrNoToken) {
		return true
	}
	var apiErr *backend.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type card struct {
	File        *receipt.ReceiptFile
	Label       string
	CanValidate bool
	CanProcess  bool
}

type section struct {
	Title string
	Cards []card
}

type dashboardData struct {
	Flash           flash
	UserName        string
	Tab             pageTab
	Tabs            []pageTab
	Stats           receipt.ListStats
	FeedErr         string
	Sections        []section
	HasPending      bool
	Receipts        []*receipt.ReceiptFile
	Search          string
	SortBy          string
	SortOrder       string
	Spend           *receipt.SpendStats
	UniqueMerchants int
}

// handleDashboard renders the active tab
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	tab := tabByKey(r.URL.Query().Get("tab"))
	search := r.URL.Query().Get("search")
	sortKey := receipt.NormalizeSortKey(r.URL.Query().Get("sortBy"))
	sortOrder := receipt.Ascending
	if r.URL.Query().Get("sortOrder") != string(receipt.Ascending) {
		sortOrder = receipt.Descending
	}

	s.feed.SetQuery(backend.ListQuery{
		Status:    tab.Status,
		SortBy:    sortKey,
		SortOrder: sortOrder,
		Search:    search,
	})
	if err := s.feed.Refetch(r.Context()); err != nil && unauthorized(err) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	snap := s.feed.Snapshot()

	data := dashboardData{
		Flash:     flashFromQuery(r),
		Tab:       tab,
		Tabs:      pageTabs,
		Stats:     snap.Stats,
		FeedErr:   snap.Err,
		Search:    search,
		SortBy:    string(sortKey),
		SortOrder: string(sortOrder),
	}
	if user, err := s.sessions.User(); err == nil {
		data.UserName = user.Name
	}

	switch tab.Key {
	case "validate", "process":
		groups := receipt.Partition(snap.Receipts)
		data.HasPending = len(groups.Pending) > 0
		for _, sec := range receipt.SectionsForTab(groups, tab.View) {
			cards := make([]card, 0, len(sec.Files))
			for _, f := range sec.Files {
				cards = append(cards, card{
					File:        f,
					Label:       receipt.DisplayStatus(f, tab.View),
					CanValidate: tab.Key == "validate" && !f.Status.Valid(),
					CanProcess:  tab.Key == "process" && f.Status.Valid() && !f.Status.Processed(),
				})
			}
			data.Sections = append(data.Sections, section{Title: sec.Title, Cards: cards})
		}
	case "receipts":
		rows := receipt.Sort(receipt.Search(snap.Receipts, search), sortKey, sortOrder)
		data.Receipts = rows
		data.UniqueMerchants = receipt.UniqueMerchants(rows)
		spend, err := s.api.Stats(r.Context())
		if err != nil {
			slog.Error("Fetching spend stats failed", "error", err)
		} else {
			data.Spend = spend
		}
	}

	s.render(w, "dashboard.html", data)
}

type loginData struct {
	Flash flash
}

// handleLoginPage renders the login and register forms
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "login.html", loginData{Flash: flashFromQuery(r)})
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type registerForm struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

// handleLogin exchanges credentials for a session
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := loginForm{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}
	if err := s.validate.Struct(form); err != nil {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("Enter a valid email and a password of at least 8 characters"), http.StatusSeeOther)
		return
	}

	result, err := s.api.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		slog.Error("Login failed", "email", form.Email, "error", err)
		http.Redirect(w, r, "/login?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}
	if err := s.storeSession(result); err != nil {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("Could not save session"), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleRegister creates an account and logs straight in
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	form := registerForm{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}
	if err := s.validate.Struct(form); err != nil {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("Enter a name, a valid email and a password of at least 8 characters"), http.StatusSeeOther)
		return
	}

	result, err := s.api.Register(r.Context(), form.Name, form.Email, form.Password)
	if err != nil {
		slog.Error("Registration failed", "email", form.Email, "error", err)
		http.Redirect(w, r, "/login?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}
	if err := s.storeSession(result); err != nil {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("Could not save session"), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) storeSession(result *backend.AuthResult) error {
	user := session.User{
		ID:    result.User.ID,
		Name:  result.User.Name,
		Email: result.User.Email,
	}
	if err := s.sessions.Set(result.Token, user); err != nil {
		slog.Error("Saving session failed", "error", err)
		return err
	}
	return nil
}

// handleLogout clears the session
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Clear(); err != nil {
		slog.Error("Clearing session failed", "error", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleUpload accepts one or more files and uploads them sequentially
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		redirectTo(w, r, "upload", "", "Could not read the uploaded files")
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		redirectTo(w, r, "upload", "", "No files were selected")
		return
	}

	files := make([]feed.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			redirectTo(w, r, "upload", "", fmt.Sprintf("Could not read %s", header.Filename))
			return
		}
		defer f.Close()
		files = append(files, feed.File{Name: header.Filename, Size: header.Size, Data: f})
	}

	report := s.uploader.UploadAll(r.Context(), files)
	if report.Succeeded() == 0 && len(report.Files) > 0 && unauthorized(report.Files[0].Err) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	notice := fmt.Sprintf("%d of %d files uploaded", report.Succeeded(), len(report.Files))
	if report.Failed() == 0 {
		redirectTo(w, r, "validate", notice, "")
		return
	}
	redirectTo(w, r, "validate", "", notice)
}

// handleValidate validates one record, then moves on to the process tab
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.feed.Validate(r.Context(), id); err != nil {
		s.actionError(w, r, "validate", err)
		return
	}
	redirectTo(w, r, "process", "Receipt validated", "")
}

// handleValidateAll validates every pending record sequentially. A failing
// record is counted and does not stop the rest.
func (s *Server) handleValidateAll(w http.ResponseWriter, r *http.Request) {
	s.feed.SetQuery(backend.ListQuery{Status: receipt.TabValidate})
	if err := s.feed.Refetch(r.Context()); err != nil {
		s.actionError(w, r, "validate", err)
		return
	}
	pending := receipt.Partition(s.feed.Snapshot().Receipts).Pending

	succeeded := 0
	for _, f := range pending {
		if err := s.feed.Validate(r.Context(), f.ID); err != nil {
			slog.Error("Bulk validate failed for receipt", "id", f.ID, "error", err)
			continue
		}
		succeeded++
	}
	notice := fmt.Sprintf("%d of %d receipts validated", succeeded, len(pending))
	if succeeded == len(pending) {
		redirectTo(w, r, "process", notice, "")
		return
	}
	redirectTo(w, r, "validate", "", notice)
}

// handleProcess runs extraction for one record. The backend can report
// failure inside a 200 body, which routes back to the upload tab.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := s.feed.Process(r.Context(), id)
	if err != nil {
		s.actionError(w, r, "process", err)
		return
	}
	if !result.Succeeded() {
		message := result.Message
		if message == "" {
			message = "Processing failed"
		}
		redirectTo(w, r, "upload", "", message)
		return
	}
	redirectTo(w, r, "receipts", "Receipt processed", "")
}

// handleDelete removes one record and returns to the tab it came from
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tab := r.FormValue("tab")
	if tab == "" {
		tab = "receipts"
	}
	if err := s.feed.Delete(r.Context(), id); err != nil {
		s.actionError(w, r, tab, err)
		return
	}
	redirectTo(w, r, tab, "Receipt deleted", "")
}

// actionError turns a per-record action failure into a flash banner, or a
// login redirect when the session is gone
func (s *Server) actionError(w http.ResponseWriter, r *http.Request, tab string, err error) {
	if unauthorized(err) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	slog.Error("Receipt action failed", "tab", tab, "error", err)
	redirectTo(w, r, tab, "", err.Error())
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("Rendering template failed", "template", name, "error", err)
	}
}
