package fbank

import "math"

// hannWindow returns a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// hzToMel converts frequency in Hz to the HTK mel scale.
func hzToMel(hz float64) float64 {
	return 1127.0 * math.Log(1.0+hz/700.0)
}

// melToHz converts an HTK mel value back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Exp(mel/1127.0) - 1.0)
}

// melFilterBank builds triangular filters over the magnitude spectrum,
// interpolated in mel space. Returns [numMels][fftSize/2+1].
func melFilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	bins := fftSize/2 + 1
	lowMel, highMel := hzToMel(lowFreq), hzToMel(highFreq)
	step := (highMel - lowMel) / float64(numMels+1)

	binMel := make([]float64, bins)
	for k := range binMel {
		binMel[k] = hzToMel(float64(k) * float64(sampleRate) / float64(fftSize))
	}

	bank := make([][]float64, numMels)
	for m := range numMels {
		left := lowMel + float64(m)*step
		center := left + step
		right := center + step

		filter := make([]float64, bins)
		for k, mel := range binMel {
			switch {
			case mel > left && mel <= center:
				filter[k] = (mel - left) / step
			case mel > center && mel < right:
				filter[k] = (right - mel) / step
			}
		}
		bank[m] = filter
	}
	return bank
}
