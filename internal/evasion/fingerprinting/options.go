package fingerprinting

// Option tables for the weighted fields. Weights need not sum to 1.

type weighted[T any] struct {
	Value  T
	Weight float64
}

type ScreenConfig struct {
	Width       int
	Height      int
	AvailWidth  int
	AvailHeight int
}

type GPUConfig struct {
	Vendor   string
	Renderer string
}

var screenOptions = []weighted[ScreenConfig]{
	{ScreenConfig{1366, 768, 1366, 728}, 0.25},
	{ScreenConfig{1600, 900, 1600, 860}, 0.15},
	{ScreenConfig{1920, 1080, 1920, 1040}, 0.35},
	{ScreenConfig{2560, 1440, 2560, 1400}, 0.15},
	{ScreenConfig{3840, 2160, 3840, 2120}, 0.10},
}

var gpuOptions = []weighted[GPUConfig]{
	{GPUConfig{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 620 (0x00005917) Direct3D11 vs_5_0 ps_5_0, D3D11)"}, 0.30},
	{GPUConfig{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 630 (0x00003E92) Direct3D11 vs_5_0 ps_5_0, D3D11)"}, 0.20},
	{GPUConfig{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce GTX 1650 (0x00001F82) Direct3D11 vs_5_0 ps_5_0, D3D11)"}, 0.20},
	{GPUConfig{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 (0x00002504) Direct3D11 vs_5_0 ps_5_0, D3D11)"}, 0.15},
	{GPUConfig{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon(TM) Graphics (0x00001638) Direct3D11 vs_5_0 ps_5_0, D3D11)"}, 0.15},
}

var colorDepthOptions = []weighted[int]{
	{16, 0.05},
	{24, 0.60},
	{30, 0.05},
	{32, 0.30},
}

var deviceMemoryOptions = []weighted[int]{
	{1, 0.10},
	{2, 0.25},
	{4, 0.40},
	{8, 0.20},
	{12, 0.03},
	{16, 0.02},
}

var coreOptions = []weighted[int]{
	{2, 0.10},
	{4, 0.40},
	{6, 0.20},
	{8, 0.15},
	{12, 0.08},
	{16, 0.04},
	{24, 0.02},
	{32, 0.01},
}

var incognitoOptions = []weighted[string]{
	{"false", 0.95},
	{"true", 0.05},
}

const (
	browserPlugins = "PDF Viewer,Chrome PDF Viewer,Chromium PDF Viewer,Microsoft Edge PDF Viewer,WebKit built-in PDF"

	scrollMinY = 2350
	scrollMaxY = 2450
)

// b1Keys is the ordered subset of fields folded into b1.
var b1Keys = []string{
	"x33", "x34", "x35", "x36", "x37", "x38", "x39", "x42", "x43",
	"x44", "x45", "x46", "x48", "x49", "x50", "x51", "x52", "x82",
}

// B1Keys returns a copy of the b1 field order.
func B1Keys() []string {
	return append([]string(nil), b1Keys...)
}
