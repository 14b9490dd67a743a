// Package prefs persists the display name and icon the user last entered a
// room with, so the CLI can pre-fill them and resume a shared room.
package prefs
