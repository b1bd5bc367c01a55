package tf

// FlagGrid is a boolean companion to a Block. true marks a sample as RFI.
type FlagGrid struct {
	nspectra  int
	nchannels int
	flags     []bool
}

// NewFlagGrid returns an all-false grid of the given shape.
func NewFlagGrid(nspectra, nchannels int) *FlagGrid {
	nspectra = max(nspectra, 0)
	nchannels = max(nchannels, 0)
	return &FlagGrid{
		nspectra:  nspectra,
		nchannels: nchannels,
		flags:     make([]bool, nspectra*nchannels),
	}
}

// NewFlagGridFor returns an all-false grid shaped like b.
func NewFlagGridFor[T Sample](b *Block[T]) *FlagGrid {
	return NewFlagGrid(b.NumberOfSpectra(), b.NumberOfChannels())
}

// NumberOfSpectra returns the number of rows
func (g *FlagGrid) NumberOfSpectra() int { return g.nspectra }

// NumberOfChannels returns the number of columns
func (g *FlagGrid) NumberOfChannels() int { return g.nchannels }

// Len returns the number of flags
func (g *FlagGrid) Len() int { return len(g.flags) }

// Get reports whether spectrum s, channel c is flagged.
func (g *FlagGrid) Get(s, c int) bool { return g.flags[s*g.nchannels+c] }

// Set flags (or clears) spectrum s, channel c.
func (g *FlagGrid) Set(s, c int, v bool) { g.flags[s*g.nchannels+c] = v }

// SetSpectrum sets every channel of spectrum s to v.
func (g *FlagGrid) SetSpectrum(s int, v bool) {
	row := g.flags[s*g.nchannels : (s+1)*g.nchannels]
	for i := range row {
		row[i] = v
	}
}

// SetChannel sets channel c of every spectrum to v.
func (g *FlagGrid) SetChannel(c int, v bool) {
	for s := 0; s < g.nspectra; s++ {
		g.flags[s*g.nchannels+c] = v
	}
}

// Values exposes the backing storage (spectrum-major).
func (g *FlagGrid) Values() []bool { return g.flags }

// Count returns the number of flagged samples.
func (g *FlagGrid) Count() int {
	n := 0
	for _, f := range g.flags {
		if f {
			n++
		}
	}
	return n
}

// CountSpectrum returns the number of flagged channels in spectrum s.
func (g *FlagGrid) CountSpectrum(s int) int {
	n := 0
	for _, f := range g.flags[s*g.nchannels : (s+1)*g.nchannels] {
		if f {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the grid.
func (g *FlagGrid) Clone() *FlagGrid {
	flags := make([]bool, len(g.flags))
	copy(flags, g.flags)
	return &FlagGrid{nspectra: g.nspectra, nchannels: g.nchannels, flags: flags}
}

// SameShape reports whether two grids have identical dimensions.
func (g *FlagGrid) SameShape(other *FlagGrid) bool {
	return g.nspectra == other.nspectra && g.nchannels == other.nchannels
}

// Matches reports whether the grid has the dimensions of b.
func Matches[T Sample](g *FlagGrid, b *Block[T]) bool {
	return g.nspectra == b.NumberOfSpectra() && g.nchannels == b.NumberOfChannels()
}
