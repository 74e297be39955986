// Package output renders proximity results as JSON or aligned text tables.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/colthorp/proximity-cli/internal/proximity"
)

// PrintJSON writes a single item as indented JSON.
func PrintJSON(out io.Writer, item any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(item); err != nil {
		return eris.Wrap(err, "output: encode json")
	}
	return nil
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

// PrintGeocode writes the candidates resolved for one address.
func PrintGeocode(out io.Writer, address string, result proximity.GeocodeResult) {
	w := newTable(out)
	_, _ = fmt.Fprintln(w, "ADDRESS\tCOORDINATE\tTYPE\tFORMATTED")
	_, _ = fmt.Fprintln(w, "-------\t----------\t----\t---------")
	if len(result) == 0 {
		_, _ = fmt.Fprintf(w, "%s\t-\t-\tno match\n", address)
	}
	for _, c := range result {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", address, c.Location, c.LocationType, c.FormattedAddress)
	}
	_ = w.Flush()
}

// PrintPlaces writes a bucket's places, one per line.
func PrintPlaces(out io.Writer, places []proximity.PlaceRecord) {
	w := newTable(out)
	_, _ = fmt.Fprintln(w, "PLACE_ID\tNAME\tCOORDINATE\tRATING\tADDRESS")
	_, _ = fmt.Fprintln(w, "--------\t----\t----------\t------\t-------")
	for _, p := range places {
		rating := "-"
		if p.Rating != nil {
			rating = fmt.Sprintf("%.1f", *p.Rating)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.PlaceID,
			truncate(p.Name, 40),
			p.Coordinate,
			rating,
			truncate(p.Address, 50),
		)
	}
	_ = w.Flush()
}

// PrintRows writes enrichment rows, followed by any unresolved addresses.
func PrintRows(out io.Writer, report *proximity.EnrichReport) {
	w := newTable(out)
	_, _ = fmt.Fprintln(w, "ADDRESS\tAMENITY\tNEAREST\tSTRAIGHT_M\tTRAVEL_M\tERROR")
	_, _ = fmt.Fprintln(w, "-------\t-------\t-------\t----------\t--------\t-----")
	for _, r := range report.Rows {
		nearest := r.PlaceName
		if nearest == "" {
			nearest = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(r.Address, 40),
			r.Amenity,
			truncate(nearest, 30),
			meters(r.StraightLineMeters),
			meters(r.DistanceMeters),
			r.Error,
		)
	}
	_ = w.Flush()

	if len(report.Unresolved) > 0 {
		_, _ = fmt.Fprintf(out, "\n%d unresolved address(es):\n", len(report.Unresolved))
		for _, u := range report.Unresolved {
			_, _ = fmt.Fprintf(out, "  %s: %s\n", u.Address, u.Error)
		}
	}
}

// PrintStats writes entry counts and locations for the three stores.
func PrintStats(out io.Writer, stats proximity.Stats) {
	w := newTable(out)
	_, _ = fmt.Fprintln(w, "STORE\tENTRIES\tLOCATION")
	_, _ = fmt.Fprintln(w, "-----\t-------\t--------")
	for _, s := range []proximity.StoreStats{stats.Geocode, stats.Amenity, stats.Distance} {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", s.Name, s.Entries, s.Location)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\nPlaces across all amenities: %d\n", stats.Places)
}

func meters(m float64) string {
	if m == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f", m)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
