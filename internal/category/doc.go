// Package category turns market, submarket and symbol codes into display
// names and builds the dropdown option lists shown next to the chart.
//
// Everything here is a pure function of its input plus static tables.
// Display names are localised through a Localizer backed by a
// golang.org/x/text message catalog.
package category
