package aparto

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student-rooms/internal/logger"
	"student-rooms/internal/models"
	"student-rooms/internal/provider"
)

const propertyPageHTML = `<!DOCTYPE html>
<html>
<head><title>Binary Hub - Aparto</title></head>
<body>
<div class="room-types">
  <div class="room-card"><h3>Platinum Ensuite</h3><p class="price">€320 p/w</p></div>
  <div class="room-card"><h3>Bronze Ensuite</h3><p class="price">€291 p/w</p></div>
  <div class="room-card"><h3>Silver Ensuite</h3><p class="price">€300 p/w</p></div>
  <div class="room-card"><h3>Gold Ensuite</h3><p class="price">€310 p/w</p></div>
</div>
</body>
</html>`

const propertyPageNoPrices = `<html><body>
<div class="room-card"><h3>Bronze Ensuite</h3><p>Coming soon</p></div>
<div class="room-card"><h3>Studio Room</h3><p>Contact for pricing</p></div>
</body></html>`

const nextDataHTML = `<html><head>
<script id="__NEXT_DATA__" type="application/json">
{"props": {"pageProps": {"rooms": [
  {"name": "Gold Ensuite", "price": 310},
  {"name": "Platinum Ensuite", "price": "€320"},
  {"name": "Parking", "price": 50}
]}}}
</script></head><body>Silver Ensuite €1 p/w</body></html>`

const monthlyHTML = `<html><body><p>Rooms from €950 per month</p><p>Premium €1,100/month</p></body></html>`

const dublinCityPage = `<html><body>
<div class="grid">
  <a href="/locations/dublin/binary-hub">Binary Hub</a>
  <a href="/locations/dublin/beckett-house/">Beckett House</a>
  <a href="/locations/dublin/dorset-point">Dorset Point</a>
  <a href="/locations/dublin/the-loom">The Loom</a>
  <a href="/locations/dublin/binary-hub">Binary Hub again</a>
  <a href="/locations/dublin/short-stays">Short stays</a>
  <a href="https://elsewhere.example/locations/dublin/fake">Elsewhere</a>
</div>
<article><a href="/locations/dublin/montrose">Montrose</a><p>15 Dorset Street Upper, Dublin 1</p></article>
</body></html>`

const barcelonaCityPage = `<html><body><div>
  <a href="/locations/barcelona/pallars">Pallars</a>
  <a href="/locations/barcelona/pallars/short-stays">Short stays</a>
  <a href="/locations/barcelona/cristobal-de-moura">Cristóbal de Moura</a>
  <a href="/locations/barcelona/diagonal-suites">Diagonal Suites</a>
</div></body></html>`

type termFixture struct {
	name       string
	start, end string
}

type portalServer struct {
	*httptest.Server
	mu         sync.Mutex
	terms      map[int]termFixture
	transient  map[int]int
	probes     map[int]int
	countryIDs []string
	properties map[string]string
}

func termPage(id int, f termFixture) string {
	return fmt.Sprintf(`<html><body>
<div class="room-search" data-termid="%d" data-datestart="%sT00:00:00" data-dateend="%sT00:00:00">
<p>You have selected '%s' booking term.
This booking term begins on %s and ends on %s.</p>
<h2>Choose your room</h2>
</div></body></html>`, id, f.start, f.end, f.name, dayFirstText(f.start), dayFirstText(f.end))
}

func dayFirstText(iso string) string {
	d, err := models.ParseDate(iso)
	if err != nil {
		return ""
	}
	return d.Time().Format("02/01/2006")
}

func newPortalServer(t *testing.T, terms map[int]termFixture) *portalServer {
	t.Helper()
	ps := &portalServer{
		terms:      terms,
		transient:  map[int]int{},
		probes:     map[int]int{},
		properties: map[string]string{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/dublin", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(dublinCityPage))
	})
	mux.HandleFunc("/locations/barcelona", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(barcelonaCityPage))
	})
	mux.HandleFunc("/locations/paris", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/locations/paris/jardin">Jardin</a></body></html>`))
	})
	mux.HandleFunc("/locations/dublin/", func(w http.ResponseWriter, r *http.Request) {
		slug := strings.TrimPrefix(r.URL.Path, "/locations/dublin/")
		ps.mu.Lock()
		page, ok := ps.properties[slug]
		ps.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/entry", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><form action="/General/Post" method="post">
<input type="hidden" name="__RequestVerificationToken" value="tok">
<input type="radio" name="CheckOrderList" value="1">
</form></body></html>`))
	})
	mux.HandleFunc("/eu/General/Post", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("__RequestVerificationToken") != "tok" {
			http.Error(w, "missing token", http.StatusBadRequest)
			return
		}
		ps.mu.Lock()
		ps.countryIDs = append(ps.countryIDs, r.PostForm.Get("CheckOrderList"))
		ps.mu.Unlock()
		_, _ = w.Write([]byte(`"/StarRezPortalXEU/ABC/Residence"`))
	})
	mux.HandleFunc("/StarRezPortalXEU/ABC/Residence", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "StarRezSession", Value: "s1", Path: "/"})
		_, _ = w.Write([]byte("<html>Residence</html>"))
	})
	mux.HandleFunc("/portal/General/RoomSearch/RoomSearch/RedirectToMainFilter", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.URL.Query().Get("termID"))
		if err != nil || r.URL.Query().Get("roomSelectionModelID") != "361" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		ps.mu.Lock()
		ps.probes[id]++
		left := ps.transient[id]
		if left > 0 {
			ps.transient[id] = left - 1
		}
		f, ok := ps.terms[id]
		ps.mu.Unlock()

		if left > 0 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		if !ok {
			_, _ = w.Write([]byte("<html><body>The selected term is not available.</body></html>"))
			return
		}
		_, _ = w.Write([]byte(termPage(id, f)))
	})

	ps.Server = httptest.NewServer(mux)
	t.Cleanup(ps.Close)
	return ps
}

func (ps *portalServer) maxProbed() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	highest := 0
	for id := range ps.probes {
		highest = max(highest, id)
	}
	return highest
}

func newTestProvider(t *testing.T, srv *portalServer, start, end int) *Provider {
	t.Helper()
	p, err := New(Config{
		MainBaseURL:  srv.URL,
		EntryURL:     srv.URL + "/entry",
		PortalEUBase: srv.URL + "/eu",
		PortalOrigin: srv.URL,
		PortalBases:  map[string]string{"IE": srv.URL + "/portal", "UK": srv.URL + "/portal"},
		TermStart:    start,
		TermEnd:      end,
		Concurrency:      4,
		TransientRetries: 2,
		RetryBackoff:     time.Millisecond,
		Timeout:          5 * time.Second,
	}, logger.NewNop())
	require.NoError(t, err)
	return p
}

var (
	dublin   = models.Location{Country: "Ireland", City: "Dublin"}
	year2026 = provider.Query{AcademicYear: models.AcademicYear{StartYear: 2026, EndYear: 2027}}
)

func dublinTerms() map[int]termFixture {
	return map[int]termFixture{
		1264: {"Binary Hub - 26/27 - Semester 1", "2026-09-01", "2027-01-31"},
		1265: {"Binary Hub - 26/27 - 41 Weeks", "2026-08-29", "2027-06-12"},
		1266: {"Dorset Point - 26/27 - 51 Weeks", "2026-08-22", "2027-08-14"},
		1267: {"The Loom - 26/27 - Semester 1", "2026-09-05", "2027-01-30"},
		1268: {"Beckett House - 26/27 - 41 Weeks", "2026-08-29", "2027-06-12"},
	}
}

func TestListOptions_FindsTermsInsideWiderWindow(t *testing.T) {
	srv := newPortalServer(t, dublinTerms())
	p := newTestProvider(t, srv, 1250, 1350)

	opts, err := p.ListOptions(context.Background(), dublin, year2026)
	require.NoError(t, err)
	require.Len(t, opts, 5)

	ids := make([]int, len(opts))
	for i, o := range opts {
		ids[i] = o.Ref.TermID
		assert.Equal(t, unknownRoomType, o.RoomType)
		assert.Equal(t, "2026-27", o.AcademicYear)
		assert.False(t, o.PriceWeekly.Valid)
	}
	assert.Equal(t, []int{1264, 1265, 1266, 1267, 1268}, ids)

	first := opts[0]
	assert.Equal(t, models.ProviderAparto, first.Provider)
	assert.Equal(t, "Binary Hub", first.PropertyName)
	assert.Equal(t, "binary-hub", first.PropertySlug)
	assert.Equal(t, "Binary Hub - 26/27 - Semester 1", first.OptionName)
	assert.Equal(t, "2026-09-01", first.StartDate.String())
	assert.Equal(t, "2027-01-31", first.EndDate.String())
	assert.Contains(t, first.BookingURL, "termID=1264")
	assert.Equal(t, "Dublin", first.Ref.City)

	assert.Equal(t, "dorset-point", opts[2].PropertySlug)
	assert.Equal(t, 51, opts[2].Ref.Weeks)

	assert.Equal(t, []string{"1"}, srv.countryIDs)
	assert.Less(t, srv.maxProbed(), 1350)
	assert.GreaterOrEqual(t, srv.maxProbed(), 1319)
}

func TestListOptions_DefaultWindowKeepsScanningUntilFirstHit(t *testing.T) {
	srv := newPortalServer(t, dublinTerms())
	def := DefaultConfig()
	p := newTestProvider(t, srv, def.TermStart, def.TermEnd)

	opts, err := p.ListOptions(context.Background(), dublin, year2026)
	require.NoError(t, err)
	require.Len(t, opts, 5)
	assert.Equal(t, 1264, opts[0].Ref.TermID)
	assert.Equal(t, 1268, opts[4].Ref.TermID)

	highest := srv.maxProbed()
	assert.GreaterOrEqual(t, highest, 1268+def.MaxConsecutiveMisses+1)
	assert.Less(t, highest, def.TermEnd)
}

func TestListOptions_NoValidTermsScansWholeWindow(t *testing.T) {
	srv := newPortalServer(t, nil)
	p := newTestProvider(t, srv, 1200, 1300)

	opts, err := p.ListOptions(context.Background(), dublin, year2026)
	require.NoError(t, err)
	assert.Empty(t, opts)
	assert.Equal(t, 1300, srv.maxProbed())
}

func TestListOptions_FiltersCityAndYear(t *testing.T) {
	terms := dublinTerms()
	terms[1269] = termFixture{"Giovenale - 26/27 - 10 months", "2026-09-01", "2027-06-30"}
	terms[1270] = termFixture{"Binary Hub - 25/26 - 41 Weeks", "2025-08-30", "2026-06-13"}
	srv := newPortalServer(t, terms)
	p := newTestProvider(t, srv, 1250, 1350)

	opts, err := p.ListOptions(context.Background(), dublin, year2026)
	require.NoError(t, err)
	assert.Len(t, opts, 5)

	all, err := p.ListOptions(context.Background(), dublin, provider.Query{AllYears: true})
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "2025-26", all[5].AcademicYear)
}

func TestListOptions_RetriesTransientProbes(t *testing.T) {
	srv := newPortalServer(t, dublinTerms())
	srv.transient[1264] = 2
	srv.transient[1300] = 5
	p := newTestProvider(t, srv, 1250, 1350)

	opts, err := p.ListOptions(context.Background(), dublin, year2026)
	require.NoError(t, err)
	require.Len(t, opts, 5)
	assert.Equal(t, 1264, opts[0].Ref.TermID)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 3, srv.probes[1264])
	assert.Equal(t, 3, srv.probes[1300])
}

func TestListOptions_PricesFromPropertyPage(t *testing.T) {
	srv := newPortalServer(t, dublinTerms())
	srv.properties["binary-hub"] = propertyPageHTML
	p := newTestProvider(t, srv, 1250, 1350)

	opts, err := p.ListOptions(context.Background(), dublin, year2026)
	require.NoError(t, err)
	require.Len(t, opts, 4+4+1+1+1)

	assert.Equal(t, "Bronze Ensuite", opts[0].RoomType)
	assert.True(t, opts[0].PriceWeekly.Decimal.Equal(decimal.NewFromInt(291)))
	assert.Equal(t, "€291/week", opts[0].PriceLabel)
	require.NotNil(t, opts[0].PrivateBathroom)
	assert.True(t, *opts[0].PrivateBathroom)
	assert.Equal(t, "Platinum Ensuite", opts[3].RoomType)
	assert.Equal(t, 1265, opts[4].Ref.TermID)
}

func TestListOptions_NoPortal(t *testing.T) {
	srv := newPortalServer(t, nil)
	p := newTestProvider(t, srv, 1250, 1260)

	_, err := p.ListOptions(context.Background(), models.Location{City: "Paris"}, year2026)
	assert.ErrorIs(t, err, ErrNoPortal)
	assert.ErrorIs(t, err, provider.ErrNotSupported)

	props, err := p.Discover(context.Background(), models.Location{City: "Paris"})
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "France", props[0].Country)
}

func TestListOptions_SessionFailure(t *testing.T) {
	srv := newPortalServer(t, dublinTerms())
	p := newTestProvider(t, srv, 1250, 1350)
	p.cfg.EntryURL = srv.URL + "/locations/dublin"

	_, err := p.ListOptions(context.Background(), dublin, year2026)
	assert.ErrorIs(t, err, provider.ErrUpstreamShapeChanged)
}

func TestListOptions_Cancelled(t *testing.T) {
	srv := newPortalServer(t, dublinTerms())
	p := newTestProvider(t, srv, 1250, 1350)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.ListOptions(ctx, dublin, year2026)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDiscover(t *testing.T) {
	srv := newPortalServer(t, nil)
	p := newTestProvider(t, srv, 1250, 1260)

	props, err := p.Discover(context.Background(), dublin)
	require.NoError(t, err)

	slugs := make([]string, len(props))
	for i, pr := range props {
		slugs[i] = pr.Slug
	}
	assert.Equal(t, []string{"binary-hub", "beckett-house", "dorset-point", "the-loom", "montrose"}, slugs)
	assert.Equal(t, "Beckett House", props[1].Name)
	assert.Equal(t, srv.URL+"/locations/dublin/the-loom", props[3].URL)
	assert.Empty(t, props[0].Location)
	assert.Equal(t, "Street Upper, Dublin 1", props[4].Location)

	bcn, err := p.Discover(context.Background(), models.Location{City: "Barcelona"})
	require.NoError(t, err)
	require.Len(t, bcn, 3)
	assert.Equal(t, "Cristobal De Moura", bcn[1].Name)
	assert.Equal(t, "Spain", bcn[1].Country)
}

func TestDiscover_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>maintenance</body></html>"))
	}))
	defer srv.Close()
	p, err := New(Config{MainBaseURL: srv.URL}, logger.NewNop())
	require.NoError(t, err)

	_, err = p.Discover(context.Background(), dublin)
	assert.ErrorIs(t, err, provider.ErrUpstreamShapeChanged)
}

func TestProbeBooking(t *testing.T) {
	srv := newPortalServer(t, dublinTerms())
	p := newTestProvider(t, srv, 1250, 1350)

	opt := models.RoomOption{
		Provider:     models.ProviderAparto,
		PropertySlug: "binary-hub",
		Ref:          models.SourceRef{TermID: 1267, City: "Dublin", Country: "Ireland"},
	}
	bc, err := p.ProbeBooking(context.Background(), opt)
	require.NoError(t, err)

	assert.Contains(t, bc.PortalRedirectURL, "termID=1267")
	require.Len(t, bc.Links, 3)
	assert.Equal(t, srv.URL+"/entry", bc.Links[0].URL)
	assert.Equal(t, srv.URL+"/locations/dublin/binary-hub", bc.Links[1].URL)
	assert.Equal(t, "The Loom - 26/27 - Semester 1", bc.Details["termName"])
	assert.Equal(t, "2026-09-05", bc.Details["startDate"])
	assert.Equal(t, true, bc.Details["termAvailable"])

	_, err = p.ProbeBooking(context.Background(), models.RoomOption{})
	assert.ErrorIs(t, err, provider.ErrIncompleteOption)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		resp ProbeResponse
		want Outcome
	}{
		{"room selection page", ProbeResponse{Status: 200, Body: "<h2>Choose your room</h2>"}, Valid},
		{"unrelated page", ProbeResponse{Status: 200, Body: "<p>Term not available</p>"}, Invalid},
		{"not found", ProbeResponse{Status: 404}, Invalid},
		{"redirected to login", ProbeResponse{Status: 302}, Invalid},
		{"forbidden", ProbeResponse{Status: 403}, Transient},
		{"timeout status", ProbeResponse{Status: 408}, Transient},
		{"too early", ProbeResponse{Status: 425}, Transient},
		{"rate limited", ProbeResponse{Status: 429}, Transient},
		{"server error", ProbeResponse{Status: 502}, Transient},
		{"transport error", ProbeResponse{Err: errors.New("connection reset")}, Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.resp))
		})
	}
}

func TestParseTerm(t *testing.T) {
	body := termPage(1264, termFixture{"Binary Hub - 26/27 - 41 Weeks", "2026-08-29", "2027-06-12"})
	term := parseTerm(1264, body, "https://portal/term")

	assert.Equal(t, "Binary Hub - 26/27 - 41 Weeks", term.Name)
	assert.Equal(t, "Binary Hub", term.PropertyName)
	assert.Equal(t, 41, term.Weeks)
	assert.Equal(t, "2026-08-29", term.Begin.String())
	assert.Equal(t, "2027-06-12", term.EndISO.String())
	assert.True(t, term.InAcademicYear(models.AcademicYear{StartYear: 2026, EndYear: 2027}))
	assert.False(t, term.InAcademicYear(models.AcademicYear{StartYear: 2025, EndYear: 2026}))

	bare := parseTerm(99, "<html>Choose your room</html>", "u")
	assert.Equal(t, "Term 99", bare.Name)
	start, end := bare.Dates()
	assert.Nil(t, start)
	assert.Nil(t, end)
	_, ok := bare.AcademicYear()
	assert.False(t, ok)
}

func TestTermAcademicYear(t *testing.T) {
	named := Term{Name: "The Loom - 27/28 - Semester 1"}
	year, ok := named.AcademicYear()
	require.True(t, ok)
	assert.Equal(t, models.AcademicYear{StartYear: 2027, EndYear: 2028}, year)

	d := models.NewDate(2025, 9, 1)
	dated := Term{Name: "The Loom - 27/28 - Semester 1", StartISO: &d}
	year, _ = dated.AcademicYear()
	assert.Equal(t, 2025, year.StartYear)
}

func TestBuildOption_UndatedTermInAllYearsMode(t *testing.T) {
	p := &Provider{}
	route := Route{City: "Dublin", Country: "Ireland"}
	prop := models.PropertyRef{Slug: "the-loom"}

	labelled := p.buildOption(Term{ID: 1, Name: "The Loom - 27/28 - Semester 1", PropertyName: "The Loom"}, prop, unknownRoom(), route, provider.Query{AllYears: true})
	assert.Equal(t, "2027-28", labelled.AcademicYear)

	bare := p.buildOption(Term{ID: 2, Name: "Term 2"}, prop, unknownRoom(), route, provider.Query{AllYears: true})
	assert.Empty(t, bare.AcademicYear)

	scoped := p.buildOption(Term{ID: 3, Name: "Term 3"}, prop, unknownRoom(), route, provider.Query{AcademicYear: models.AcademicYear{StartYear: 2026, EndYear: 2027}, AllYears: true})
	assert.Equal(t, "2026-27", scoped.AcademicYear)
}

func TestPropertyNameFromTerm(t *testing.T) {
	tests := map[string]string{
		"Binary Hub - 26/27 - 41 Weeks":              "Binary Hub",
		"Cristobal de Moura -26/27-Semester 1-10%":   "Cristobal de Moura",
		"aparto Cristobal de Moura-September 2024":   "Cristobal de Moura",
		"PA - 26/27 - Generic Group":                 "PA",
		"Plain Name":                                 "Plain Name",
	}
	for in, want := range tests {
		assert.Equal(t, want, propertyNameFromTerm(in), in)
	}
}

func refs(names ...string) []models.PropertyRef {
	out := make([]models.PropertyRef, len(names))
	for i, n := range names {
		out[i] = models.PropertyRef{Name: n, Slug: strings.ReplaceAll(strings.ToLower(n), " ", "-")}
	}
	return out
}

func TestPropertyIndex(t *testing.T) {
	dublinIdx := newPropertyIndex(refs("Binary Hub", "Beckett House", "Dorset Point", "Montrose", "The Loom", "Stephens Quarter"))
	barcelonaIdx := newPropertyIndex(refs("Pallars", "Cristobal De Moura", "Diagonal Suites"))

	assert.True(t, dublinIdx.IsTarget("Binary Hub - 26/27 - 41 Weeks"))
	assert.True(t, dublinIdx.IsTarget("The Loom - 26/27 - Semester 1"))
	assert.True(t, dublinIdx.IsTarget("Stephen's Quarter - 26/27 - 41 Weeks"))
	assert.False(t, dublinIdx.IsTarget("Giovenale - 26/27 - 10 months"))
	assert.False(t, dublinIdx.IsTarget("Ripamonti - 26/27 - 12 months"))

	assert.False(t, barcelonaIdx.IsTarget("Binary Hub - 26/27 - 41 Weeks"))
	assert.True(t, barcelonaIdx.IsTarget("Pallars - 26/27 - 12 months"))
	assert.True(t, barcelonaIdx.IsTarget("Cristobal de Moura - 26/27 - 9 months"))

	pa, ok := barcelonaIdx.Lookup("PA - 26/27 - Semester 2 Discount")
	require.True(t, ok)
	assert.Equal(t, "pallars", pa.Slug)

	cdm, ok := barcelonaIdx.Lookup("CdM - 26/27 - TEST")
	require.True(t, ok)
	assert.Equal(t, "cristobal-de-moura", cdm.Slug)

	fuzzy, ok := barcelonaIdx.Lookup("Diagonal Suite - 26/27 - 10 months")
	require.True(t, ok)
	assert.Equal(t, "diagonal-suites", fuzzy.Slug)

	typo, ok := dublinIdx.Lookup("Montrosse - 26/27 - 41 Weeks")
	require.True(t, ok)
	assert.Equal(t, "montrose", typo.Slug)
}

func TestExtractRooms(t *testing.T) {
	rooms := extractRooms(propertyPageHTML)
	require.Len(t, rooms, 4)
	want := []string{"Bronze Ensuite", "Silver Ensuite", "Gold Ensuite", "Platinum Ensuite"}
	prices := []int64{291, 300, 310, 320}
	for i, r := range rooms {
		assert.Equal(t, want[i], r.RoomType)
		assert.True(t, r.Weekly.Decimal.Equal(decimal.NewFromInt(prices[i])), r.RoomType)
		assert.Equal(t, "€"+strconv.FormatInt(prices[i], 10)+"/week", r.Label)
	}

	noPrices := extractRooms(propertyPageNoPrices)
	require.Len(t, noPrices, 2)
	assert.Equal(t, "Bronze Ensuite", noPrices[0].RoomType)
	assert.Equal(t, "Studio Room", noPrices[1].RoomType)
	assert.False(t, noPrices[0].Weekly.Valid)

	next := extractRooms(nextDataHTML)
	require.Len(t, next, 2)
	assert.Equal(t, "Gold Ensuite", next[0].RoomType)
	assert.True(t, next[1].Weekly.Decimal.Equal(decimal.NewFromInt(320)))

	monthly := extractRooms(monthlyHTML)
	require.Len(t, monthly, 1)
	assert.Equal(t, "Room", monthly[0].RoomType)
	assert.Equal(t, "from €950/month", monthly[0].Label)

	thousands, ok := parsePrice("1,100")
	require.True(t, ok)
	assert.True(t, thousands.Equal(decimal.NewFromInt(1100)))
	cents, ok := parsePrice("291,50")
	require.True(t, ok)
	assert.Equal(t, "291.5", cents.String())
	assert.True(t, monthly[0].Weekly.Decimal.Equal(decimal.RequireFromString("219.4")))

	blank := extractRooms("<html><body>Nothing here</body></html>")
	require.Len(t, blank, 1)
	assert.Equal(t, unknownRoomType, blank[0].RoomType)
}

func TestResolveRoute(t *testing.T) {
	r, err := ResolveRoute("dublin", "")
	require.NoError(t, err)
	assert.Equal(t, Route{City: "Dublin", Country: "Ireland", Slug: "dublin", Region: "IE", CountryID: "1"}, r)

	r, err = ResolveRoute("Kingston", "")
	require.NoError(t, err)
	assert.Equal(t, "kingston-london", r.Slug)
	assert.Equal(t, "UK", r.Country)
	assert.Equal(t, "3", r.CountryID)

	r, err = ResolveRoute("Milan", "")
	require.NoError(t, err)
	assert.Equal(t, "IE", r.Region)
	assert.Equal(t, "0", r.CountryID)

	r, err = ResolveRoute("Dublin", "United Kingdom")
	require.NoError(t, err)
	assert.Equal(t, "UK", r.Country)

	r, err = ResolveRoute("Paris", "")
	require.NoError(t, err)
	assert.False(t, r.HasPortal())

	_, err = ResolveRoute("Atlantis", "")
	assert.ErrorIs(t, err, provider.ErrLocationNotFound)

	assert.Len(t, Cities(), 14)
}
