package merge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wprdc/asset-registry/internal/assets"
)

// rowResult describes how one merge-instruction row ended.
type rowResult int

const (
	rowMerged rowResult = iota
	rowSkipped
	rowAborted
)

// addressFields are the columns that justify creating a new Location.
var addressFields = []string{
	"street_address", "municipality", "city", "state",
	"zip_code", "parcel_id", "latitude", "longitude",
}

// locationOnlyFields can only ever update an existing Location; on their
// own they are not enough to create one.
var locationOnlyFields = []string{
	"residence", "iffy_geocoding", "unit", "unit_type",
	"available_transportation", "geocoding_properties",
}

func rowHasAny(row Row, cols []string) bool {
	for _, col := range cols {
		if row.Lookup(col).HasValue() {
			return true
		}
	}
	return false
}

func parseRecordID(raw string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(n), nil
}

// processRow runs the per-row merge state machine. Row-abort conditions are
// recorded in the narrative and end this row only; a non-nil error is
// fatal to the whole session (an input-integrity failure on a declared id,
// surfaced as a request-level error rather than a narrative line).
func processRow(st Store, row Row, mode Mode, n *Narrative) (rowResult, error) {
	// --- ResolveTargets ---
	idCell := row.Lookup("id")
	if !idCell.HasValue() {
		return rowAborted, fmt.Errorf("merge instructions: required column %q is missing or blank", "id")
	}
	rawID, err := parseRecordID(idCell.Raw)
	if err != nil {
		return rowAborted, fmt.Errorf("merge instructions: bad id value %q", idCell.Raw)
	}
	// Existence check on the declared primary raw asset.
	if _, err := st.RawAssetByID(rawID); err != nil {
		return rowAborted, fmt.Errorf("expected exactly one RawAsset with id = %d: %w", rawID, err)
	}

	assetCell := row.Lookup("asset_id")
	if !assetCell.HasValue() {
		return rowAborted, fmt.Errorf("merge instructions: required column %q is missing or blank", "asset_id")
	}
	assetID, err := parseRecordID(assetCell.Raw)
	if err != nil {
		return rowAborted, fmt.Errorf("merge instructions: bad asset_id value %q", assetCell.Raw)
	}
	asset, err := st.AssetByID(assetID)
	if err != nil {
		return rowAborted, fmt.Errorf("expected exactly one Asset with id = %d: %w", assetID, err)
	}

	mergeCell := row.Lookup("ids_to_merge")
	if !mergeCell.Present() {
		return rowAborted, fmt.Errorf("merge instructions: required column %q is missing", "ids_to_merge")
	}
	if !mergeCell.HasValue() {
		// Nothing to merge; this row is deliberately a no-op.
		return rowSkipped, nil
	}
	var rawIDs []uint
	for _, part := range strings.Split(mergeCell.Raw, "+") {
		id, err := parseRecordID(part)
		if err != nil {
			return rowAborted, fmt.Errorf("merge instructions: bad ids_to_merge value %q", mergeCell.Raw)
		}
		rawIDs = append(rawIDs, id)
	}
	rawAssets, err := st.RawAssetsByIDs(rawIDs)
	if err != nil || len(rawAssets) != len(rawIDs) {
		return rowAborted, fmt.Errorf("expected RawAssets for all of ids_to_merge = %v (found %d of %d)",
			rawIDs, len(rawAssets), len(rawIDs))
	}
	// Link in memory now; persisted only on commit.
	for _, ra := range rawAssets {
		ra.AssetID = &asset.ID
	}

	// --- ResolveLocation ---
	var location *assets.Location
	locCell := row.Lookup("location_id")
	switch {
	case !locCell.Present():
		// Column omitted entirely: fall back to the destination asset's
		// location, which may be nil.
		location = asset.Location
	case !locCell.HasValue() || locCell.Raw == "new":
		location = nil // a new Location to be populated below
	default:
		locID, err := parseRecordID(locCell.Raw)
		if err != nil {
			n.Addf("Unable to find a Location with id = %s.\n ABORTING!!!\n<hr>", locCell.Raw)
			return rowAborted, nil
		}
		location, err = st.LocationByID(locID)
		if err != nil {
			n.Addf("Unable to find a Location with id = %d.\n ABORTING!!!\n<hr>", locID)
			return rowAborted, nil
		}
	}

	// Location.Name is left alone here: Locations may be manually named,
	// particularly where two places share a street address and parcel ID
	// but slightly different coordinates.
	if location == nil {
		if rowHasAny(row, addressFields) {
			location = &assets.Location{}
		} else if rowHasAny(row, locationOnlyFields) {
			n.Add("There is not enough information to create a new location for this Asset, but there are fields in the merge-instructions file which need to be assigned to a Location. Does not compute! ABORTING!!!<hr>")
			return rowAborted, nil
		}
	}

	// --- ResolveOrganization ---
	var organization *assets.Organization
	orgCell := row.Lookup("organization_id")
	switch {
	case !orgCell.Present():
		organization = asset.Organization
	case !orgCell.HasValue() || orgCell.Raw == "new":
		organization = nil
	default:
		orgID, err := parseRecordID(orgCell.Raw)
		if err != nil {
			n.Addf("Unable to find an Organization with id = %s.\n ABORTING!!!\n<hr>", orgCell.Raw)
			return rowAborted, nil
		}
		organization, err = st.OrganizationByID(orgID)
		if err != nil {
			n.Addf("Unable to find an Organization with id = %d.\n ABORTING!!!\n<hr>", orgID)
			return rowAborted, nil
		}
	}

	validating := ""
	if mode == ModeValidate {
		validating = "Validating this process: "
	}
	if len(rawAssets) == 1 {
		n.Addf("%sEditing the Asset with id = %d, previously named %s, and linking it to RawAsset with id = %d and name = %s.",
			validating, asset.ID, asset.Name, rawAssets[0].ID, rawAssets[0].Name)
	} else {
		var ids, names []string
		for _, ra := range rawAssets {
			ids = append(ids, fmt.Sprint(ra.ID))
			names = append(names, ra.Name)
		}
		n.Addf("%sMerging RawAssets with ids = %s and names = %s to Asset with id = %d, previously named %s.",
			validating, strings.Join(ids, ", "), strings.Join(names, ", "), asset.ID, asset.Name)
	}

	// --- Asset name ---
	if c := row.Lookup("name"); c.HasValue() && c.Raw != asset.Name {
		n.changed(mode, "asset_name", asset.Name, c.Raw)
		asset.Name = c.Raw
	}

	var changes AssetChanges

	// --- asset_type (mandatory) ---
	atCell := row.Lookup("asset_type")
	newTypes := splitList(atCell.Raw)
	oldTypes := assetTypeNames(asset.AssetTypes)
	if !sameSet(newTypes, oldTypes) {
		n.changed(mode, "asset_type", pipeJoin(oldTypes), pipeJoin(newTypes))
		if len(newTypes) == 0 {
			n.Add("asset_type can not be empty\n ABORTING!!!\n<hr>")
			return rowAborted, nil
		}
		var resolved []assets.AssetType
		for _, name := range newTypes {
			at, err := st.AssetTypeByName(name)
			if err != nil {
				n.Addf("Unable to find one of these asset types: %v.\n ABORTING!!!\n<hr>", newTypes)
				return rowAborted, nil
			}
			resolved = append(resolved, *at)
		}
		changes.SetAssetTypes = true
		changes.AssetTypes = resolved
	}

	// --- tags / services / hard_to_count_population (optional lists) ---
	if c := row.Lookup("tags"); c.Present() {
		newVals := splitList(c.Raw)
		old := tagNames(asset.Tags)
		if !sameSet(newVals, old) {
			n.changed(mode, "tags", pipeJoin(old), pipeJoin(newVals))
			changes.SetTags = true
			changes.TagNames = newVals
		}
	}
	if c := row.Lookup("services"); c.Present() {
		newVals := splitList(c.Raw)
		old := serviceNames(asset.Services)
		if !sameSet(newVals, old) {
			n.changed(mode, "services", pipeJoin(old), pipeJoin(newVals))
			changes.SetServices = true
			changes.ServiceNames = newVals
		}
	}
	if c := row.Lookup("hard_to_count_population"); c.Present() {
		newVals := splitList(c.Raw)
		old := populationNames(asset.HardToCountPopulation)
		if !sameSet(newVals, old) {
			n.changed(mode, "hard_to_count_population", pipeJoin(old), pipeJoin(newVals))
			changes.SetPopulations = true
			changes.PopulationNames = newVals
		}
	}

	// Oddball legacy alias for the accessibility boolean.
	diffBoolAs(n, mode, row, "accessibility_features", "accessibility_features", &asset.Accessibility)

	// --- Organization identity gate ---
	// An Organization can be identified either by organization_id or by
	// organization_name. Without one of those, touching phone or email is
	// too risky to allow.
	missingOrgIdentifier := true
	if row.Lookup("organization_name").HasValue() {
		missingOrgIdentifier = false
	} else if row.Lookup("organization_id").HasValue() {
		missingOrgIdentifier = false
	}

	orgDetached := false
	if missingOrgIdentifier {
		if row.Lookup("organization_phone").HasValue() || row.Lookup("organization_email").HasValue() {
			n.Add("The organization's name is a required field if you want to change either the phone or e-mail address (as a check that the correct Organization instance is being updated. ABORTING!!!!\n<hr>.")
			return rowAborted, nil
		}
		asset.Organization = nil
		asset.OrganizationID = nil
		orgDetached = true
		n.Add("&nbsp;&nbsp;&nbsp;&nbsp;Since organization_name == '', the Asset's organization is being set to None and other fields (organization_phone and organization email) are being ignored.")
	} else {
		if organization == nil {
			organization = &assets.Organization{}
		}
		// The name diff is ungated on column presence: identifying the
		// organization by id alone while omitting the name column reads as
		// clearing the name.
		nv := row.Lookup("organization_name").String()
		if !strPtrEq(organization.Name, nv) {
			n.changed(mode, "name", strDisplay(organization.Name), strDisplay(nv))
			organization.Name = nv
		}
		diffStringAs(n, mode, row, "organization_email", "email", &organization.Email)
		diffPhoneAs(n, mode, row, "organization_phone", "phone", &organization.Phone)
	}

	// --- Location fields ---
	if location != nil {
		diffString(n, mode, row, "street_address", &location.StreetAddress)
		diffString(n, mode, row, "unit", &location.Unit)
		diffString(n, mode, row, "unit_type", &location.UnitType)
		diffString(n, mode, row, "municipality", &location.Municipality)
		diffString(n, mode, row, "city", &location.City)
		diffString(n, mode, row, "state", &location.State)
		diffString(n, mode, row, "zip_code", &location.ZipCode)
		diffString(n, mode, row, "parcel_id", &location.ParcelID)
		diffBool(n, mode, row, "residence", &location.Residence)
		diffBool(n, mode, row, "iffy_geocoding", &location.IffyGeocoding)

		coordsTouched := row.Lookup("latitude").Present() || row.Lookup("longitude").Present()
		oldLat, oldLon := location.Latitude, location.Longitude
		diffFloat(n, mode, row, "latitude", &location.Latitude)
		diffFloat(n, mode, row, "longitude", &location.Longitude)
		if coordsTouched {
			if d := DistanceFeet(oldLat, oldLon, location.Latitude, location.Longitude); d != nil {
				n.Addf("&nbsp;&nbsp;&nbsp;&nbsp;The distance between the old and new coordinates is %.2f feet.", *d)
			}
		}

		diffString(n, mode, row, "available_transportation", &location.AvailableTransportation)
		diffString(n, mode, row, "geocoding_properties", &location.GeocodingProperties)
		// Parent location is ignored for now.
	}

	// --- Asset scalar fields ---
	diffString(n, mode, row, "url", &asset.URL)
	diffString(n, mode, row, "email", &asset.Email)
	diffPhoneAs(n, mode, row, "phone", "phone", &asset.Phone)
	diffString(n, mode, row, "hours_of_operation", &asset.HoursOfOperation)
	diffString(n, mode, row, "holiday_hours_of_operation", &asset.HolidayHoursOfOperation)
	diffString(n, mode, row, "periodicity", &asset.Periodicity)
	diffInt(n, mode, row, "capacity", &asset.Capacity)
	diffString(n, mode, row, "wifi_network", &asset.WifiNetwork)
	diffBool(n, mode, row, "internet_access", &asset.InternetAccess)
	diffBool(n, mode, row, "computers_available", &asset.ComputersAvailable)
	diffBool(n, mode, row, "accessibility", &asset.Accessibility)
	diffBool(n, mode, row, "open_to_public", &asset.OpenToPublic)
	diffBool(n, mode, row, "child_friendly", &asset.ChildFriendly)
	diffBool(n, mode, row, "do_not_display", &asset.DoNotDisplay)
	diffBool(n, mode, row, "sensitive", &asset.Sensitive)
	diffString(n, mode, row, "localizability", &asset.Localizability)
	diffString(n, mode, row, "etl_notes", &asset.EtlNotes)

	// --- Commit ---
	if mode == ModeUpdate {
		n.Add("Updating associated Asset, RawAsset, Location, and Organization instances. (This may leave some orphaned.)\n")
		n.Addf("&nbsp;&nbsp;&nbsp;&nbsp;<a href=\"https://assets.wprdc.org/api/assets/%d/\" target=\"_blank\">Updated Asset</a>\n<hr>", asset.ID)

		if location != nil {
			if err := st.SaveLocation(location); err != nil {
				return rowAborted, fmt.Errorf("saving location: %w", err)
			}
			asset.LocationID = &location.ID
			asset.Location = location
		}
		if organization != nil && !orgDetached {
			if err := st.SaveOrganization(organization); err != nil {
				return rowAborted, fmt.Errorf("saving organization: %w", err)
			}
			asset.OrganizationID = &organization.ID
			asset.Organization = organization
		}
		// Raw-asset links go in first so the save-time visibility check on
		// the asset sees them.
		for _, ra := range rawAssets {
			if err := st.SaveRawAsset(ra); err != nil {
				return rowAborted, fmt.Errorf("saving raw asset %d: %w", ra.ID, err)
			}
		}
		if err := st.SaveAsset(asset, changes); err != nil {
			return rowAborted, fmt.Errorf("saving asset: %w", err)
		}
	} else {
		n.Add("\n<hr>")
	}

	return rowMerged, nil
}

func assetTypeNames(ts []assets.AssetType) []string {
	var out []string
	for _, t := range ts {
		out = append(out, t.Name)
	}
	return out
}

func tagNames(ts []assets.Tag) []string {
	var out []string
	for _, t := range ts {
		out = append(out, t.Name)
	}
	return out
}

func serviceNames(ss []assets.ProvidedService) []string {
	var out []string
	for _, s := range ss {
		out = append(out, s.Name)
	}
	return out
}

func populationNames(ps []assets.TargetPopulation) []string {
	var out []string
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}
