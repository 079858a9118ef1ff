// Package jacobian defines the local derivative blocks a component reports:
// dense blocks backed by gonum, sparse coordinate blocks, and matrix-free
// operators. Every block can be applied forward or transposed without being
// assembled.
package jacobian
