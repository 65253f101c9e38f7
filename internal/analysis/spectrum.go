// Package analysis provides post-run trajectory diagnostics: spectral
// decomposition of the total-energy series and a sensitivity estimate from
// paired perturbed runs. It consumes finished trajectories and never touches
// a live engine's state.
package analysis

import (
	"math"
	"math/cmplx"
	"sort"
)

// FFT computes the discrete Fourier transform by radix-2 decimation. Inputs
// whose length is not a power of two are zero-padded up to the next one.
func FFT(data []float64) []complex128 {
	n := nextPow2(len(data))
	padded := make([]complex128, n)
	for i, v := range data {
		padded[i] = complex(v, 0)
	}
	return fft(padded)
}

func fft(data []complex128) []complex128 {
	n := len(data)
	if n <= 1 {
		return data
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	feven := fft(even)
	fodd := fft(odd)

	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		result[k] = feven[k] + w*fodd[k]
		result[k+n/2] = feven[k] - w*fodd[k]
	}
	return result
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// PowerSpectrum returns the magnitude of each positive-frequency bin. The
// DC bin is zeroed so the series mean does not swamp the oscillatory content.
func PowerSpectrum(data []float64) []float64 {
	out := FFT(data)
	ps := make([]float64, len(out)/2)
	for i := 1; i < len(ps); i++ {
		ps[i] = cmplx.Abs(out[i])
	}
	return ps
}

// Peak is one dominant oscillation found in a trajectory's energy series.
type Peak struct {
	// Period in simulation time units.
	Period float64
	// Power is the spectral magnitude at the peak bin.
	Power float64
}

// DominantPeriods returns the top n spectral peaks of the series, strongest
// first. dt converts bin frequencies to simulation time; series shorter than
// four samples carry no resolvable oscillation and yield nil.
func DominantPeriods(series []float64, dt float64, n int) []Peak {
	if len(series) < 4 || dt <= 0 || n <= 0 {
		return nil
	}

	ps := PowerSpectrum(series)
	span := float64(nextPow2(len(series))) * dt

	peaks := make([]Peak, 0, len(ps))
	for bin := 1; bin < len(ps); bin++ {
		// Local maxima only; a monotone spectrum slope is not a cycle.
		if bin > 1 && ps[bin] <= ps[bin-1] {
			continue
		}
		if bin+1 < len(ps) && ps[bin] < ps[bin+1] {
			continue
		}
		peaks = append(peaks, Peak{Period: span / float64(bin), Power: ps[bin]})
	}

	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Power > peaks[j].Power })
	if len(peaks) > n {
		peaks = peaks[:n]
	}
	return peaks
}
