// Package retinex implements the Retinex theory of color perception as a
// Poisson equation, following Limare, Petro, Sbert and Morel's PDE
// formulation.
//
// Each color channel is processed independently: a thresholded discrete
// Laplacian keeps only the sharp gradients of the image, a Poisson
// equation is solved on that field in the cosine transform domain under
// zero-flux boundary conditions, and the solution is rescaled to output
// range either by percentile histogram flattening or by matching the mean
// and deviation of the input. Small gradients, typical of slow
// illumination drifts, are discarded by the threshold, so the result keeps
// reflectance edges while flattening shading.
//
// Basic usage on a decoded image:
//
//	out, err := retinex.ProcessImage(img, retinex.DefaultOptions())
//
// Callers that already hold planar float data can use Process directly:
//
//	m := &retinex.Image{Width: w, Height: h, Planes: planes}
//	err := retinex.Process(m, opts)
//
// The spectral package supplies the cosine transform pair; an alternative
// implementation can be injected through Options.NewTransform.
package retinex
