// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package offline owns the offline video lifecycle: downloading renditions to
// local storage, the filename convention carrying identity/quality/acquisition
// time, the retention window, and reconciliation of the download directory
// against the catalog.
package offline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MediaExt is the extension every downloaded artifact is stored under.
const MediaExt = ".mp4"

// timestampLayout is the fixed-width acquisition token in artifact names.
const timestampLayout = "200601021504"

// ParseError reports an artifact filename that does not follow the
// {videoId}_{resolutionLabel}_{YYYYMMDDHHmm}.mp4 convention. Scans skip such
// files; they never abort on one.
type ParseError struct {
	Filename string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse artifact filename %q: %s", e.Filename, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	_, ok := target.(*ParseError)
	return ok
}

// Meta is the identity decoded from an artifact filename.
type Meta struct {
	VideoID         string
	ResolutionLabel string
	AcquiredAt      time.Time
}

// EncodeFilename builds the artifact filename for a download. The caller
// guarantees videoID and resolutionLabel contain no underscores; the
// acquisition time is truncated to minute precision.
func EncodeFilename(videoID, resolutionLabel string, acquiredAt time.Time) string {
	return fmt.Sprintf("%s_%s_%s%s", videoID, resolutionLabel, acquiredAt.Format(timestampLayout), MediaExt)
}

// DecodeFilename parses an artifact filename back into its identity. It is
// pure: no filesystem access, no side effects.
func DecodeFilename(filename string) (*Meta, error) {
	name := filename
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[:idx]
	}

	parts := strings.Split(name, "_")
	if len(parts) != 3 {
		return nil, &ParseError{Filename: filename, Reason: fmt.Sprintf("expected 3 segments, got %d", len(parts))}
	}

	videoID, resolutionLabel, token := parts[0], parts[1], parts[2]

	if videoID == "" {
		return nil, &ParseError{Filename: filename, Reason: "empty video id"}
	}
	if _, err := strconv.ParseUint(videoID, 10, 64); err != nil {
		return nil, &ParseError{Filename: filename, Reason: "video id is not numeric"}
	}

	acquiredAt, err := parseTimestamp(token)
	if err != nil {
		return nil, &ParseError{Filename: filename, Reason: err.Error()}
	}

	return &Meta{
		VideoID:         videoID,
		ResolutionLabel: resolutionLabel,
		AcquiredAt:      acquiredAt,
	}, nil
}

// parseTimestamp slices the fixed-offset YYYYMMDDHHmm token. Filenames encode
// wall-clock local time, so the result is reconstructed in time.Local.
func parseTimestamp(token string) (time.Time, error) {
	if len(token) != len(timestampLayout) {
		return time.Time{}, fmt.Errorf("timestamp segment must be %d digits, got %d", len(timestampLayout), len(token))
	}

	fields := [5]int{}
	offsets := [6]int{0, 4, 6, 8, 10, 12}
	for i := range fields {
		n, err := strconv.Atoi(token[offsets[i]:offsets[i+1]])
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp segment is not numeric")
		}
		fields[i] = n
	}

	year, month, day, hour, minute := fields[0], fields[1], fields[2], fields[3], fields[4]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("timestamp segment is out of range")
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local), nil
}
