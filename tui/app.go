package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cinebooker-cli/booking"
	"cinebooker-cli/logging"
	"cinebooker-cli/model"
	"cinebooker-cli/service"
	"cinebooker-cli/store"
)

type appState int

const (
	stateLoadingMovies appState = iota
	stateSelectMovie
	stateLoadingShows
	stateSelectShow
	stateLoadingSeats
	stateSeatMap
	stateBooking
	stateLogin
	stateRegister
	stateAuthenticating
	stateError
)

// Options wires the program to its collaborators. Every field is optional in
// tests; a nil Client or Sessions simply disables the features that need it.
type Options struct {
	Client   *service.Client
	Sessions *service.Sessions
	Store    *store.Store
	Logger   *zap.Logger
	// MovieID preselects a movie once the catalog is loaded.
	MovieID string
}

type appModel struct {
	client   *service.Client
	sessions *service.Sessions
	store    *store.Store
	logger   *zap.Logger

	state     appState
	lastState appState
	err       error

	width  int
	height int

	movies       []model.Movie
	movie        model.Movie
	shows        []model.Show
	theatreNames map[string]string
	preselect    string
	refreshing   bool

	movieList list.Model
	showList  list.Model

	engine          *booking.Engine
	cursorRow       int
	cursorCol       int
	showSeatNumbers bool

	form authForm

	notice      string
	noticeIsErr bool

	spinner spinner.Model
}

type errMsg struct {
	err  error
	back *appState
}

type moviesMsg struct {
	movies    []model.Movie
	err       error
	fromCache bool
	fresh     bool
}

type showsMsg struct {
	shows []model.Show
	err   error
}

type theatreMsg struct {
	id   string
	name string
	err  error
}

type showMsg struct {
	show   *model.Show
	err    error
	reload bool
}

type bookingMsg struct {
	confirmation model.BookingConfirmation
	seats        int
	total        decimal.Decimal
	err          error
}

func New(opts Options) tea.Model {
	m := appModel{
		client:       opts.Client,
		sessions:     opts.Sessions,
		store:        opts.Store,
		logger:       logging.OrNop(opts.Logger),
		state:        stateLoadingMovies,
		preselect:    strings.TrimSpace(opts.MovieID),
		theatreNames: make(map[string]string),
	}

	m.movieList = newList("Select Movie")
	m.showList = newList("Shows")
	m.showSeatNumbers = true

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	m.spinner = sp

	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.loadMoviesCmd(), m.spinner.Tick)
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case tea.KeyMsg:
		if m.handleFilterInput(msg) {
			return m, nil
		}
		next, cmd, handled := m.handleKey(msg)
		if handled {
			return next, cmd
		}
		m = next
		// fallthrough to component update
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.isLoadingState() || m.refreshing {
			return m, cmd
		}
		return m, nil

	case errMsg:
		back := m.backState()
		if msg.back != nil {
			back = *msg.back
		}
		m.err = msg.err
		m.lastState = back
		m.state = stateError
		return m, nil

	case moviesMsg:
		return m.applyMovies(msg)

	case showsMsg:
		if msg.err != nil {
			return m, errBackCmd(msg.err, stateSelectMovie)
		}
		if len(msg.shows) == 0 {
			return m, errBackCmd(fmt.Errorf("no shows found for %s", m.movie.Name), stateSelectMovie)
		}
		m.shows = msg.shows
		m.showList.Title = fmt.Sprintf("Shows • %s", m.movie.Name)
		m.showList.SetItems(buildShowItems(m.shows, m.theatreNames))
		m.showList.Select(0)
		m.state = stateSelectShow
		return m, m.fetchMissingTheatresCmd()

	case theatreMsg:
		if msg.err != nil {
			m.logger.Debug("theatre lookup failed", zap.String("theatre_id", msg.id), zap.Error(msg.err))
			return m, nil
		}
		if msg.name != "" {
			m.theatreNames[msg.id] = msg.name
			m.showList.SetItems(buildShowItems(m.shows, m.theatreNames))
		}
		return m, nil

	case showMsg:
		return m.applyShow(msg)

	case bookingMsg:
		return m.applyBooking(msg)

	case authMsg:
		return m.applyAuth(msg)
	}

	var cmd tea.Cmd
	switch m.state {
	case stateSelectMovie:
		m.movieList, cmd = m.movieList.Update(msg)
	case stateSelectShow:
		m.showList, cmd = m.showList.Update(msg)
	case stateLogin, stateRegister:
		cmd = m.form.update(msg)
	}
	return m, cmd
}

func (m appModel) applyMovies(msg moviesMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.refreshing = false
		if len(m.movies) > 0 {
			m.setNotice("Could not refresh movies: "+service.UserMessage(msg.err), true)
			return m, nil
		}
		return m, errCmd(msg.err)
	}

	m.movies = msg.movies
	m.movieList.SetItems(buildMovieItems(m.movies))
	if m.state == stateLoadingMovies || m.state == stateError {
		m.state = stateSelectMovie
	}

	var cmds []tea.Cmd
	if msg.fromCache && !msg.fresh {
		m.refreshing = true
		cmds = append(cmds, m.refreshMoviesCmd(), m.spinner.Tick)
	} else {
		m.refreshing = false
	}

	if m.preselect != "" {
		id := m.preselect
		m.preselect = ""
		if movie, ok := findMovie(m.movies, id); ok {
			m.movie = movie
			m.state = stateLoadingShows
			cmds = append(cmds, m.fetchShowsCmd(movie.Id), m.spinner.Tick)
		} else {
			m.setNotice(fmt.Sprintf("Movie %q was not found.", id), true)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m appModel) applyShow(msg showMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if msg.reload {
			m.state = stateSeatMap
			m.setNotice("Could not reload seats: "+service.UserMessage(msg.err), true)
			return m, nil
		}
		return m, errBackCmd(msg.err, stateSelectShow)
	}
	if msg.show == nil {
		return m, errBackCmd(errors.New("this show is no longer available"), stateSelectShow)
	}

	show := *msg.show
	if show.TheatreName == "" {
		show.TheatreName = m.theatreNames[show.TheatreId]
	}
	if msg.reload && m.engine != nil {
		if err := m.engine.Reload(show); err != nil {
			m.state = stateSeatMap
			m.setNotice(displayError(err), true)
			return m, nil
		}
		m.setNotice("Seat availability refreshed.", false)
	} else {
		m.engine = booking.NewEngine(show, m.sessionProvider(), m.booker(), m.logger)
		m.clearNotice()
	}
	m.cursorRow, m.cursorCol = 0, 0
	m.clampCursor()
	m.state = stateSeatMap
	return m, nil
}

func (m appModel) applyBooking(msg bookingMsg) (tea.Model, tea.Cmd) {
	m.state = stateSeatMap
	if m.engine == nil {
		return m, nil
	}
	m.engine.Complete(msg.err)
	if msg.err != nil {
		m.setNotice("Booking failed: "+service.UserMessage(msg.err), true)
		return m, nil
	}
	m.setNotice(booking.ConfirmationMessage(msg.confirmation, msg.seats, msg.total), false)
	return m, nil
}

func (m appModel) View() string {
	header := m.headerView()
	switch m.state {
	case stateLoadingMovies, stateLoadingShows, stateLoadingSeats, stateBooking, stateAuthenticating:
		return header + "\n\n" + m.loadingView()
	case stateSelectMovie:
		return header + "\n\n" + m.movieList.View() + m.noticeView()
	case stateSelectShow:
		return header + "\n\n" + m.showList.View() + m.noticeView()
	case stateSeatMap:
		return header + "\n\n" + m.renderSeatMap() + m.noticeView()
	case stateLogin, stateRegister:
		return header + "\n\n" + m.form.view() + m.noticeView()
	case stateError:
		return header + "\n\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(displayError(m.err)) + "\n\n" + hint("Press esc to go back or ctrl+c to quit.")
	default:
		return header
	}
}

func (m appModel) headerView() string {
	title := lipgloss.NewStyle().Bold(true).Render("CineBooker")
	sub := []string{}
	if m.movie.Name != "" && m.state != stateSelectMovie {
		sub = append(sub, fmt.Sprintf("Movie: %s", m.movie.Name))
	}
	if m.engine != nil && (m.state == stateSeatMap || m.state == stateBooking) {
		show := m.engine.Show()
		sub = append(sub, fmt.Sprintf("Show: %s", formatShowTime(show)))
		sub = append(sub, fmt.Sprintf("Theatre: %s", service.TheatreLabel(show, nil)))
	}
	sub = append(sub, m.userLabel())
	if m.refreshing {
		sub = append(sub, m.spinner.View()+" refreshing")
	}
	meta := "\n" + lipgloss.NewStyle().Faint(true).Render(strings.Join(sub, " • "))

	hints := "ctrl+c quit • esc back • type to filter • enter select • ctrl+l login • ctrl+n register • ctrl+o logout"
	switch m.state {
	case stateSeatMap:
		hints = "ctrl+c quit • esc back • arrows move • space toggle • enter book • r reload • n toggle numbers • ctrl+l login"
	case stateLogin, stateRegister:
		hints = "ctrl+c quit • esc cancel • tab next field • enter submit"
	case stateError:
		hints = "ctrl+c quit • esc back"
	}
	filterLine := ""
	if listPtr := m.activeList(); listPtr != nil {
		if filter := listPtr.FilterValue(); filter != "" {
			filterLine = "\n" + hint(fmt.Sprintf("Filter: %s", filter))
		}
	}
	return title + meta + filterLine + "\n" + hint(hints)
}

func (m appModel) userLabel() string {
	if m.sessions == nil {
		return "Not logged in"
	}
	session, ok := m.sessions.Session()
	if !ok {
		return "Not logged in"
	}
	return "User: " + session.User.Username
}

func (m appModel) noticeView() string {
	if m.notice == "" {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	if m.noticeIsErr {
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	}
	return "\n\n" + style.Render(m.notice)
}

func (m *appModel) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeIsErr = isErr
}

func (m *appModel) clearNotice() {
	m.notice = ""
	m.noticeIsErr = false
}

func (m appModel) handleKey(msg tea.KeyMsg) (appModel, tea.Cmd, bool) {
	if m.state == stateLogin || m.state == stateRegister {
		return m.handleFormKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit, true
	case "q":
		if m.state == stateSeatMap || m.state == stateError {
			return m, tea.Quit, true
		}
	case "esc":
		if listPtr := m.activeList(); listPtr != nil {
			if listPtr.SettingFilter() || listPtr.IsFiltered() {
				listPtr.ResetFilter()
				return m, nil, true
			}
		}
		next, cmd := m.goBack()
		return next, cmd, true
	case "ctrl+l":
		if m.canOpenForm() {
			return m.openForm(formLogin)
		}
	case "ctrl+n":
		if m.canOpenForm() {
			return m.openForm(formRegister)
		}
	case "ctrl+o":
		if m.canOpenForm() {
			return m.logout(), nil, true
		}
	}

	if m.state == stateSeatMap {
		return m.handleSeatMapKey(msg)
	}

	if msg.Type == tea.KeyEnter {
		switch m.state {
		case stateSelectMovie:
			item, ok := m.movieList.SelectedItem().(movieItem)
			if !ok {
				return m, nil, true
			}
			m.movie = item.movie
			m.clearNotice()
			m.state = stateLoadingShows
			return m, tea.Batch(m.fetchShowsCmd(m.movie.Id), m.spinner.Tick), true
		case stateSelectShow:
			item, ok := m.showList.SelectedItem().(showItem)
			if !ok {
				return m, nil, true
			}
			m.state = stateLoadingSeats
			return m, tea.Batch(m.fetchShowCmd(item.show.Id, false), m.spinner.Tick), true
		}
	}
	return m, nil, false
}

func (m appModel) canOpenForm() bool {
	switch m.state {
	case stateSelectMovie, stateSelectShow, stateSeatMap:
		return m.sessions != nil
	default:
		return false
	}
}

func (m appModel) logout() appModel {
	if err := m.sessions.Logout(); err != nil {
		m.setNotice(displayError(err), true)
		return m
	}
	m.setNotice("Logged out.", false)
	return m
}

func (m appModel) goBack() (appModel, tea.Cmd) {
	switch m.state {
	case stateSelectShow:
		m.state = stateSelectMovie
	case stateSeatMap:
		m.state = stateSelectShow
		m.clearNotice()
	case stateError:
		m.state = m.lastState
		if m.state == stateSelectMovie && len(m.movies) == 0 {
			m.state = stateLoadingMovies
			return m, tea.Batch(m.refreshMoviesCmd(), m.spinner.Tick)
		}
	}
	return m, nil
}

// handleFilterInput edits the active list filter directly, so typing filters
// without pressing "/" first. It reports whether the key was consumed.
func (m *appModel) handleFilterInput(msg tea.KeyMsg) bool {
	l := m.activeList()
	if l == nil || !l.FilteringEnabled() {
		return false
	}

	filter := l.FilterValue()
	switch msg.Type {
	case tea.KeyRunes:
		if len(msg.Runes) == 0 {
			return false
		}
		filter += string(msg.Runes)
	case tea.KeySpace:
		filter += " "
	case tea.KeyBackspace, tea.KeyDelete:
		if filter == "" {
			return false
		}
		_, size := utf8.DecodeLastRuneInString(filter)
		filter = filter[:len(filter)-size]
	default:
		return false
	}

	if filter == "" {
		l.ResetFilter()
	} else {
		l.SetFilterText(filter)
	}
	return true
}

func (m *appModel) activeList() *list.Model {
	switch m.state {
	case stateSelectMovie:
		return &m.movieList
	case stateSelectShow:
		return &m.showList
	default:
		return nil
	}
}

func (m appModel) isLoadingState() bool {
	return m.state == stateLoadingMovies ||
		m.state == stateLoadingShows ||
		m.state == stateLoadingSeats ||
		m.state == stateBooking ||
		m.state == stateAuthenticating
}

func (m appModel) loadingView() string {
	title := "Loading"
	switch m.state {
	case stateLoadingMovies:
		title = "Loading movies"
	case stateLoadingShows:
		title = "Loading shows"
	case stateLoadingSeats:
		title = "Loading seats"
	case stateBooking:
		title = "Booking your seats"
	case stateAuthenticating:
		title = "Contacting the server"
	}
	return fmt.Sprintf("%s %s\n\n%s", m.spinner.View(), title, hint("Please wait..."))
}

func (m *appModel) resizeLists() {
	if m.width == 0 || m.height == 0 {
		return
	}
	h := m.height - 6
	if h < 6 {
		h = 6
	}
	m.movieList.SetSize(m.width, h)
	m.showList.SetSize(m.width, h)
}

func newList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	accent := lipgloss.Color("5")
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(accent).BorderForeground(accent)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(accent).BorderForeground(accent)

	l := list.New(nil, delegate, 0, 0)
	l.Title = title
	l.Filter = lowerTermFilter
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	return l
}

// lowerTermFilter matches against item filter values, which are already
// lower case.
func lowerTermFilter(term string, targets []string) []list.Rank {
	return list.DefaultFilter(strings.ToLower(term), targets)
}

func hint(text string) string {
	return lipgloss.NewStyle().Faint(true).Render(text)
}

func errCmd(err error) tea.Cmd {
	return func() tea.Msg {
		return errMsg{err: err}
	}
}

// errBackCmd reports err and sends esc on the error screen back to state.
func errBackCmd(err error, state appState) tea.Cmd {
	return func() tea.Msg {
		return errMsg{err: err, back: &state}
	}
}

// backState picks where the error screen returns to when the failing command
// named no state. A second error keeps the first error's target.
func (m appModel) backState() appState {
	switch m.state {
	case stateLoadingMovies, stateLoadingShows:
		return stateSelectMovie
	case stateLoadingSeats:
		return stateSelectShow
	case stateBooking:
		return stateSeatMap
	case stateAuthenticating:
		return m.form.returnState
	case stateError:
		return m.lastState
	default:
		return m.state
	}
}

// sessionProvider avoids handing the engine a typed nil.
func (m appModel) sessionProvider() booking.SessionProvider {
	if m.sessions == nil {
		return nil
	}
	return m.sessions
}

func (m appModel) booker() booking.Booker {
	if m.client == nil {
		return nil
	}
	return m.client
}

func (m appModel) loadMoviesCmd() tea.Cmd {
	return func() tea.Msg {
		if m.store != nil {
			if cached, fresh, err := m.store.LoadMovieCache(); err == nil && len(cached) > 0 {
				return moviesMsg{movies: cached, fromCache: true, fresh: fresh}
			}
		}
		return m.fetchMovies()
	}
}

func (m appModel) refreshMoviesCmd() tea.Cmd {
	return func() tea.Msg {
		return m.fetchMovies()
	}
}

func (m appModel) fetchMovies() moviesMsg {
	if m.client == nil {
		return moviesMsg{err: errors.New("no API client configured")}
	}
	movies, err := m.client.GetMovies(context.Background())
	if err == nil && len(movies) > 0 && m.store != nil {
		if saveErr := m.store.SaveMovieCache(movies); saveErr != nil {
			m.logger.Debug("movie cache not saved", zap.Error(saveErr))
		}
	}
	return moviesMsg{movies: movies, err: err}
}

func (m appModel) fetchShowsCmd(movieID string) tea.Cmd {
	return func() tea.Msg {
		shows, err := m.client.GetShowsByMovieID(context.Background(), movieID)
		return showsMsg{shows: shows, err: err}
	}
}

func (m appModel) fetchShowCmd(showID string, reload bool) tea.Cmd {
	return func() tea.Msg {
		show, err := m.client.GetShowByID(context.Background(), showID)
		return showMsg{show: show, err: err, reload: reload}
	}
}

// fetchMissingTheatresCmd looks up a name for every theatre the shows list
// without one.
func (m appModel) fetchMissingTheatresCmd() tea.Cmd {
	var cmds []tea.Cmd
	seen := make(map[string]bool)
	for _, show := range m.shows {
		id := strings.TrimSpace(show.TheatreId)
		if id == "" || show.TheatreName != "" || seen[id] {
			continue
		}
		if _, ok := m.theatreNames[id]; ok {
			continue
		}
		seen[id] = true
		cmds = append(cmds, m.fetchTheatreCmd(id))
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m appModel) fetchTheatreCmd(theatreID string) tea.Cmd {
	return func() tea.Msg {
		name, err := m.client.TheatreName(context.Background(), m.theatreCache(), theatreID)
		return theatreMsg{id: theatreID, name: name, err: err}
	}
}

func (m appModel) theatreCache() service.TheatreCache {
	if m.store == nil {
		return nil
	}
	return m.store
}

func (m appModel) bookCmd(payload model.BookingPayload, total decimal.Decimal) tea.Cmd {
	return func() tea.Msg {
		confirmation, err := m.client.BookTickets(context.Background(), payload)
		return bookingMsg{
			confirmation: confirmation,
			seats:        len(payload.SeatNumbers),
			total:        total,
			err:          err,
		}
	}
}

func findMovie(movies []model.Movie, id string) (model.Movie, bool) {
	for _, movie := range movies {
		if movie.Id == id {
			return movie, true
		}
	}
	return model.Movie{}, false
}
