package extractor

import "sort"

// FormatSource is one of the shapes in which yt-dlp reports playable
// formats. The set of variants is closed: SingleFormat, RequestedFormats
// and FormatList.
type FormatSource interface {
	selectAudio() (Format, bool)
}

// SingleFormat is a top-level format yt-dlp already picked for the
// requested format expression.
type SingleFormat struct {
	Format Format
}

// RequestedFormats are the formats yt-dlp would merge for the request
type RequestedFormats []Format

// FormatList is every format yt-dlp knows for the video
type FormatList []Format

func (s SingleFormat) selectAudio() (Format, bool) {
	return s.Format, s.Format.URL != ""
}

func (r RequestedFormats) selectAudio() (Format, bool) {
	return bestAudioOnly(r)
}

func (l FormatList) selectAudio() (Format, bool) {
	return bestAudioOnly(l)
}

// SelectAudio picks the stream to serve. Sources are tried in order and
// the first one that yields a format wins; callers pass them from most to
// least specific. It fails with ErrNoAudio when no source yields one.
func SelectAudio(sources ...FormatSource) (Format, error) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if f, ok := src.selectAudio(); ok {
			return f, nil
		}
	}
	return Format{}, ErrNoAudio
}

// bestAudioOnly keeps formats with a URL and an audio codec, drops any
// with a video track, and returns the highest bitrate. Ties keep input order.
func bestAudioOnly(formats []Format) (Format, bool) {
	candidates := make([]Format, 0, len(formats))
	for _, f := range formats {
		if f.URL == "" || !f.HasAudio() || !f.AudioOnly() {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return Format{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ABR > candidates[j].ABR
	})
	return candidates[0], true
}
