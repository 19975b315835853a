/*
Package lm fits ordinary least squares regression models in Go (golang).

The design matrix and response are held in an immutable DesignMatrix value,
which can be constructed from flat slices or from a data stream, see
http://github.com/kshedden/dstream.  Models are fit by QR decomposition;
the normal equations are never formed on the primary path.
*/
package lm
