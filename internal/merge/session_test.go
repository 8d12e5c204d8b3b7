package merge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/wprdc/asset-registry/internal/assets"
)

// memStore is an in-memory Store for exercising the merge workflow without
// a database. Lookups return shallow copies so that narrative-only runs
// cannot leak mutations back into the fixture state, mirroring how the
// gorm-backed store hands out freshly scanned rows.
type memStore struct {
	rawAssets     map[uint]assets.RawAsset
	assets        map[uint]assets.Asset
	locations     map[uint]assets.Location
	organizations map[uint]assets.Organization
	assetTypes    map[string]assets.AssetType
	tags          map[string]assets.Tag
	services      map[string]assets.ProvidedService
	populations   map[string]assets.TargetPopulation
	reports       []assets.MergeReport

	nextID uint

	saveAssetCalls int
}

func newMemStore() *memStore {
	return &memStore{
		rawAssets:     map[uint]assets.RawAsset{},
		assets:        map[uint]assets.Asset{},
		locations:     map[uint]assets.Location{},
		organizations: map[uint]assets.Organization{},
		assetTypes:    map[string]assets.AssetType{},
		tags:          map[string]assets.Tag{},
		services:      map[string]assets.ProvidedService{},
		populations:   map[string]assets.TargetPopulation{},
		nextID:        1000,
	}
}

func (m *memStore) allocID() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) RawAssetByID(id uint) (*assets.RawAsset, error) {
	ra, ok := m.rawAssets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ra, nil
}

func (m *memStore) RawAssetsByIDs(ids []uint) ([]*assets.RawAsset, error) {
	var out []*assets.RawAsset
	for _, id := range ids {
		ra, ok := m.rawAssets[id]
		if !ok {
			continue
		}
		out = append(out, &ra)
	}
	return out, nil
}

func (m *memStore) AssetByID(id uint) (*assets.Asset, error) {
	a, ok := m.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	if a.LocationID != nil {
		if l, ok := m.locations[*a.LocationID]; ok {
			a.Location = &l
		}
	}
	if a.OrganizationID != nil {
		if o, ok := m.organizations[*a.OrganizationID]; ok {
			a.Organization = &o
		}
	}
	return &a, nil
}

func (m *memStore) LocationByID(id uint) (*assets.Location, error) {
	l, ok := m.locations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (m *memStore) OrganizationByID(id uint) (*assets.Organization, error) {
	o, ok := m.organizations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *memStore) AssetTypeByName(name string) (*assets.AssetType, error) {
	at, ok := m.assetTypes[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &at, nil
}

func (m *memStore) SaveAsset(a *assets.Asset, ch AssetChanges) error {
	m.saveAssetCalls++
	if ch.SetAssetTypes {
		a.AssetTypes = ch.AssetTypes
	}
	if ch.SetTags {
		a.Tags = nil
		for _, name := range ch.TagNames {
			t, ok := m.tags[name]
			if !ok {
				t = assets.Tag{ID: m.allocID(), Name: name}
				m.tags[name] = t
			}
			a.Tags = append(a.Tags, t)
		}
	}
	if ch.SetServices {
		a.Services = nil
		for _, name := range ch.ServiceNames {
			s, ok := m.services[name]
			if !ok {
				s = assets.ProvidedService{ID: m.allocID(), Name: name}
				m.services[name] = s
			}
			a.Services = append(a.Services, s)
		}
	}
	if ch.SetPopulations {
		a.HardToCountPopulation = nil
		for _, name := range ch.PopulationNames {
			p, ok := m.populations[name]
			if !ok {
				p = assets.TargetPopulation{ID: m.allocID(), Name: name}
				m.populations[name] = p
			}
			a.HardToCountPopulation = append(a.HardToCountPopulation, p)
		}
	}
	m.assets[a.ID] = *a
	return nil
}

func (m *memStore) SaveLocation(l *assets.Location) error {
	if l.ID == 0 {
		l.ID = m.allocID()
	}
	l.Derive()
	m.locations[l.ID] = *l
	return nil
}

func (m *memStore) SaveOrganization(o *assets.Organization) error {
	if o.ID == 0 {
		o.ID = m.allocID()
	}
	m.organizations[o.ID] = *o
	return nil
}

func (m *memStore) SaveRawAsset(ra *assets.RawAsset) error {
	m.rawAssets[ra.ID] = *ra
	return nil
}

func (m *memStore) SaveReport(rep *assets.MergeReport) error {
	m.reports = append(m.reports, *rep)
	return nil
}

// fixtureStore seeds one mergeable scene: Asset 1 backed by Location 10 and
// Organization 20, plus two raw assets to fold in.
func fixtureStore() *memStore {
	st := newMemStore()
	st.assetTypes["library"] = assets.AssetType{ID: 1, Name: "library", Title: "Library"}
	st.assetTypes["community_center"] = assets.AssetType{ID: 2, Name: "community_center", Title: "Community Center"}

	lat, lon := 40.4406, -79.9959
	st.locations[10] = assets.Location{
		ID:            10,
		Name:          "4400 Forbes Ave, Pittsburgh, PA 15213",
		StreetAddress: strPtr("4400 Forbes Ave"),
		City:          strPtr("Pittsburgh"),
		State:         strPtr("PA"),
		ZipCode:       strPtr("15213"),
		Latitude:      &lat,
		Longitude:     &lon,
	}
	st.organizations[20] = assets.Organization{
		ID:    20,
		Name:  strPtr("Carnegie Library of Pittsburgh"),
		Email: strPtr("contact@carnegielibrary.org"),
	}

	locID, orgID := uint(10), uint(20)
	st.assets[1] = assets.Asset{
		ID:             1,
		Name:           "Main Library",
		AssetTypes:     []assets.AssetType{st.assetTypes["library"]},
		LocationID:     &locID,
		OrganizationID: &orgID,
		URL:            strPtr("https://old.example.org"),
	}

	st.rawAssets[101] = assets.RawAsset{ID: 101, Name: "main library"}
	st.rawAssets[102] = assets.RawAsset{ID: 102, Name: "Carnegie Main Branch"}
	return st
}

func runCSV(t *testing.T, st Store, mode Mode, csvText string) []string {
	t.Helper()
	r := &Runner{Store: st}
	lines, err := r.Run(strings.NewReader(csvText), "instructions.csv", mode)
	if err != nil {
		t.Fatalf("Run(%s): %v", mode, err)
	}
	return lines
}

const editCSV = `id,asset_id,ids_to_merge,name,asset_type,tags,url,capacity,internet_access,location_id,street_address,city,state,zip_code,latitude,longitude,organization_id,organization_name,organization_email,organization_phone
101,1,101+102,Carnegie Library - Main,library|community_center,books|wifi,https://example.org,25,true,10,4400 Forbes Ave,Pittsburgh,PA,15213,40.4406,-79.9959,20,Carnegie Library of Pittsburgh,info@carnegielibrary.org,412-555-0123
`

func TestValidateAndUpdateNarrativesMatch(t *testing.T) {
	vLines := runCSV(t, fixtureStore(), ModeValidate, editCSV)
	uLines := runCSV(t, fixtureStore(), ModeUpdate, editCSV)

	// Strip the per-mode framing: the dry-run prefix on the summary line,
	// "will be " phrasing, and the trailing commit/separator block.
	normalize := func(lines []string) []string {
		var out []string
		for _, line := range lines {
			if strings.HasPrefix(line, "Updating associated Asset") ||
				strings.Contains(line, "Updated Asset") ||
				line == "\n<hr>" {
				continue
			}
			line = strings.TrimPrefix(line, "Validating this process: ")
			line = strings.Replace(line, " will be changed from ", " changed from ", 1)
			out = append(out, line)
		}
		return out
	}

	v := normalize(vLines)
	u := normalize(uLines)
	if len(v) != len(u) {
		t.Fatalf("line counts differ: validate=%d update=%d\nvalidate: %q\nupdate: %q",
			len(v), len(u), vLines, uLines)
	}
	for i := range v {
		if v[i] != u[i] {
			diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
				A:        v,
				B:        u,
				FromFile: "validate",
				ToFile:   "update",
				Context:  3,
			})
			t.Fatalf("narratives diverge beyond mode phrasing:\n%s", diff)
		}
	}
}

func TestValidatePersistsNothing(t *testing.T) {
	st := fixtureStore()
	lines := runCSV(t, st, ModeValidate, editCSV)

	if len(lines) == 0 || !strings.HasPrefix(lines[0], "Validating this process: ") {
		t.Fatalf("expected dry-run summary line, got %q", lines)
	}
	if st.saveAssetCalls != 0 {
		t.Errorf("validate saved the asset %d times", st.saveAssetCalls)
	}
	if got := st.assets[1].Name; got != "Main Library" {
		t.Errorf("asset name changed to %q during validate", got)
	}
	if st.assets[1].URL == nil || *st.assets[1].URL != "https://old.example.org" {
		t.Errorf("asset url changed during validate")
	}
	// A dry run must not create lookup records either.
	if len(st.tags) != 0 {
		t.Errorf("validate created tags: %v", st.tags)
	}
	if ra := st.rawAssets[101]; ra.AssetID != nil {
		t.Errorf("validate linked raw asset 101 to asset %d", *ra.AssetID)
	}
}

func TestUpdateCommits(t *testing.T) {
	st := fixtureStore()
	lines := runCSV(t, st, ModeUpdate, editCSV)

	a := st.assets[1]
	if a.Name != "Carnegie Library - Main" {
		t.Errorf("asset name = %q", a.Name)
	}
	if a.URL == nil || *a.URL != "https://example.org" {
		t.Errorf("asset url = %v", strDisplay(a.URL))
	}
	if a.Capacity == nil || *a.Capacity != 25 {
		t.Errorf("capacity = %s", intDisplay(a.Capacity))
	}
	if len(a.AssetTypes) != 2 {
		t.Errorf("asset types = %v", assetTypeNames(a.AssetTypes))
	}
	if !sameSet(tagNames(a.Tags), []string{"books", "wifi"}) {
		t.Errorf("tags = %v", tagNames(a.Tags))
	}
	if _, ok := st.tags["wifi"]; !ok {
		t.Error("update should have created the wifi tag")
	}

	for _, id := range []uint{101, 102} {
		ra := st.rawAssets[id]
		if ra.AssetID == nil || *ra.AssetID != 1 {
			t.Errorf("raw asset %d not linked to asset 1", id)
		}
	}

	org := st.organizations[20]
	if org.Email == nil || *org.Email != "info@carnegielibrary.org" {
		t.Errorf("organization email = %v", strDisplay(org.Email))
	}
	if org.Phone == nil || *org.Phone != "+14125550123" {
		t.Errorf("organization phone = %v, want E.164", strDisplay(org.Phone))
	}

	var hasCommitLine bool
	for _, l := range lines {
		if strings.HasPrefix(l, "Updating associated Asset") {
			hasCommitLine = true
		}
	}
	if !hasCommitLine {
		t.Errorf("missing commit line in narrative: %q", lines)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	st := fixtureStore()
	runCSV(t, st, ModeUpdate, editCSV)
	second := runCSV(t, st, ModeUpdate, editCSV)

	for _, line := range second {
		if strings.Contains(line, "changed from") {
			t.Errorf("second run still reports a change: %q", line)
		}
	}
}

func TestDuplicateListEntriesAreNotAChange(t *testing.T) {
	st := fixtureStore()
	a := st.assets[1]
	a.Tags = []assets.Tag{{ID: 501, Name: "books"}}
	st.assets[1] = a

	lines := runCSV(t, st, ModeUpdate,
		"id,asset_id,ids_to_merge,asset_type,tags\n101,1,101,library,books|books\n")

	for _, l := range lines {
		if strings.HasPrefix(l, "tags ") {
			t.Errorf("repeated list entry reported as a change: %q", l)
		}
	}
}

func TestEmptyMergeListSkipsRow(t *testing.T) {
	st := fixtureStore()
	lines := runCSV(t, st, ModeUpdate,
		"id,asset_id,ids_to_merge,name\n101,1,,Renamed\n")

	if len(lines) != 0 {
		t.Errorf("skipped row produced narrative: %q", lines)
	}
	if st.assets[1].Name != "Main Library" {
		t.Errorf("skipped row changed the asset name to %q", st.assets[1].Name)
	}
}

func TestUnknownLocationAbortsRow(t *testing.T) {
	st := fixtureStore()
	lines := runCSV(t, st, ModeUpdate,
		"id,asset_id,ids_to_merge,location_id\n101,1,101,999\n")

	want := "Unable to find a Location with id = 999.\n ABORTING!!!\n<hr>"
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("narrative = %q, want [%q]", lines, want)
	}
	if st.saveAssetCalls != 0 {
		t.Error("aborted row must not save")
	}
}

func TestAbsentLocationColumnKeepsNilLocation(t *testing.T) {
	st := fixtureStore()
	st.assets[2] = assets.Asset{
		ID:         2,
		Name:       "Mobile Food Pantry",
		AssetTypes: []assets.AssetType{st.assetTypes["library"]},
	}
	st.rawAssets[103] = assets.RawAsset{ID: 103, Name: "mobile food pantry"}
	locationsBefore := len(st.locations)

	// No location_id column and no address columns: the row must fall back
	// to the asset's own location, which here is nil, and merge anyway.
	lines := runCSV(t, st, ModeUpdate,
		"id,asset_id,ids_to_merge,asset_type,url\n103,2,103,library,https://example.org/pantry\n")

	merged := false
	for _, l := range lines {
		if strings.HasPrefix(l, "Updating associated Asset") {
			merged = true
		}
	}
	if !merged {
		t.Fatalf("location-less asset did not merge: %q", lines)
	}
	if len(st.locations) != locationsBefore {
		t.Errorf("merge created a Location: %d -> %d", locationsBefore, len(st.locations))
	}
	a := st.assets[2]
	if a.LocationID != nil {
		t.Errorf("asset gained LocationID %d", *a.LocationID)
	}
	if a.URL == nil || *a.URL != "https://example.org/pantry" {
		t.Errorf("url = %v", strDisplay(a.URL))
	}
}

func TestNewLocationNeedsAddressFields(t *testing.T) {
	st := fixtureStore()
	lines := runCSV(t, st, ModeUpdate,
		"id,asset_id,ids_to_merge,location_id,residence\n101,1,101,new,t\n")

	if len(lines) != 1 || !strings.Contains(lines[0], "Does not compute! ABORTING!!!") {
		t.Errorf("narrative = %q", lines)
	}
}

func TestEmptyAssetTypeAbortsRow(t *testing.T) {
	st := fixtureStore()
	lines := runCSV(t, st, ModeUpdate,
		"id,asset_id,ids_to_merge,asset_type\n101,1,101,\n")

	if len(lines) != 3 {
		t.Fatalf("narrative = %q", lines)
	}
	if !strings.Contains(lines[1], "asset_type changed from library to .") {
		t.Errorf("missing change line before abort: %q", lines[1])
	}
	if lines[2] != "asset_type can not be empty\n ABORTING!!!\n<hr>" {
		t.Errorf("abort line = %q", lines[2])
	}
	if st.saveAssetCalls != 0 {
		t.Error("aborted row must not save")
	}
}

func TestUnknownAssetTypeAbortsRow(t *testing.T) {
	st := fixtureStore()
	lines := runCSV(t, st, ModeUpdate,
		"id,asset_id,ids_to_merge,asset_type\n101,1,101,zoo\n")

	found := false
	for _, l := range lines {
		if strings.Contains(l, "Unable to find one of these asset types") {
			found = true
		}
	}
	if !found {
		t.Errorf("narrative = %q", lines)
	}
}

func TestOrganizationIdentityGate(t *testing.T) {
	st := fixtureStore()
	lines := runCSV(t, st, ModeUpdate,
		"id,asset_id,ids_to_merge,asset_type,organization_phone\n101,1,101,library,412-555-0123\n")

	want := "The organization's name is a required field if you want to change either the phone or e-mail address (as a check that the correct Organization instance is being updated. ABORTING!!!!\n<hr>."
	if len(lines) != 2 || lines[1] != want {
		t.Errorf("narrative = %q", lines)
	}
	if org := st.organizations[20]; org.Phone != nil {
		t.Errorf("gated row still changed the organization phone to %v", *org.Phone)
	}
}

func TestMissingOrgNameDetachesOrganization(t *testing.T) {
	st := fixtureStore()
	lines := runCSV(t, st, ModeUpdate,
		"id,asset_id,ids_to_merge,asset_type,organization_name\n101,1,101,library,\n")

	found := false
	for _, l := range lines {
		if strings.Contains(l, "the Asset's organization is being set to None") {
			found = true
		}
	}
	if !found {
		t.Fatalf("narrative = %q", lines)
	}
	if a := st.assets[1]; a.OrganizationID != nil {
		t.Errorf("asset still linked to organization %d", *a.OrganizationID)
	}
}

func TestUnknownAssetIDIsFatal(t *testing.T) {
	r := &Runner{Store: fixtureStore()}
	_, err := r.Run(strings.NewReader(
		"id,asset_id,ids_to_merge\n101,404,101\n"), "instructions.csv", ModeUpdate)
	if err == nil {
		t.Fatal("expected a fatal error for an unknown asset_id")
	}
	if !strings.Contains(err.Error(), "Asset with id = 404") {
		t.Errorf("error = %v", err)
	}
}

func TestReportPersistedInBothModes(t *testing.T) {
	for _, mode := range []Mode{ModeValidate, ModeUpdate} {
		st := fixtureStore()
		runCSV(t, st, mode, editCSV)
		if len(st.reports) != 1 {
			t.Fatalf("%s: %d reports stored", mode, len(st.reports))
		}
		rep := st.reports[0]
		if rep.Mode != string(mode) || rep.Filename != "instructions.csv" {
			t.Errorf("report = %+v", rep)
		}
		if len(rep.Lines) == 0 {
			t.Errorf("%s: report has no narrative lines", mode)
		}
	}
}

func TestNewLocationGetsDistanceOnlyWithOldCoords(t *testing.T) {
	st := fixtureStore()
	lines := runCSV(t, st, ModeUpdate,
		"id,asset_id,ids_to_merge,asset_type,location_id,latitude,longitude\n101,1,101,library,10,40.4443,-79.9532\n")

	found := false
	for _, l := range lines {
		if strings.Contains(l, "The distance between the old and new coordinates is") &&
			strings.HasSuffix(l, "feet.") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing distance line: %q", lines)
	}
}

func TestReadRowsAbsentVersusBlank(t *testing.T) {
	rows, err := ReadRows(strings.NewReader(
		"\uFEFFid,asset_id,name\n1,2\n3,4,\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	// BOM must not corrupt the first header.
	if got := rows[0].Lookup("id"); !got.HasValue() || got.Raw != "1" {
		t.Errorf("id cell = %+v", got)
	}
	// A short record backfills blanks for header columns, not absence.
	if got := rows[0].Lookup("name"); got.State != PresentEmpty {
		t.Errorf("short-record name = %+v, want PresentEmpty", got)
	}
	// A column missing from the header entirely is Absent.
	if got := rows[0].Lookup("url"); got.State != Absent {
		t.Errorf("unheadered column = %+v, want Absent", got)
	}
}

func TestReadRowsRejectsHeaderOnlyFile(t *testing.T) {
	if _, err := ReadRows(strings.NewReader("id,asset_id\n")); err == nil {
		t.Error("expected an error for a file with no data rows")
	}
}

func TestSummaryLineSingleVersusMulti(t *testing.T) {
	st := fixtureStore()
	lines := runCSV(t, st, ModeValidate,
		"id,asset_id,ids_to_merge\n101,1,101\n")
	if len(lines) == 0 || !strings.Contains(lines[0], "Editing the Asset with id = 1") {
		t.Errorf("single-raw summary = %q", lines)
	}

	st = fixtureStore()
	lines = runCSV(t, st, ModeValidate,
		"id,asset_id,ids_to_merge\n101,1,101+102\n")
	want := fmt.Sprintf("Merging RawAssets with ids = %s and names = %s to Asset with id = 1, previously named Main Library.",
		"101, 102", "main library, Carnegie Main Branch")
	if len(lines) == 0 || lines[0] != "Validating this process: "+want {
		t.Errorf("multi-raw summary = %q", lines)
	}
}
