package blur

import (
	"fmt"
	"strings"
)

// Kernel is a 3x3 convolution kernel indexed [row][column]
type Kernel [3][3]float64

var (
	// Laplacian4 is the 4-connected discrete Laplacian
	Laplacian4 = Kernel{
		{0, 1, 0},
		{1, -4, 1},
		{0, 1, 0},
	}

	// Laplacian8 also weighs the diagonal neighbours
	Laplacian8 = Kernel{
		{1, 1, 1},
		{1, -8, 1},
		{1, 1, 1},
	}
)

var kernelsByName = map[string]Kernel{
	"laplacian4": Laplacian4,
	"laplacian8": Laplacian8,
}

// KernelByName resolves "laplacian4" or "laplacian8" (case-insensitive).
// An empty name selects Laplacian4.
func KernelByName(name string) (Kernel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Laplacian4, nil
	}
	k, ok := kernelsByName[name]
	if !ok {
		return Kernel{}, fmt.Errorf("unknown kernel %q", name)
	}
	return k, nil
}

// KernelNames lists the kernels accepted by KernelByName
func KernelNames() []string {
	return []string{"laplacian4", "laplacian8"}
}

// Name returns the registered name of k, or "custom"
func (k Kernel) Name() string {
	for _, name := range KernelNames() {
		if kernelsByName[name] == k {
			return name
		}
	}
	return "custom"
}
