// Package utils provides internal utility functions shared by the early
// departure pipeline.
//
// It contains:
//   - Feed timestamp conversion
//   - Clock and calendar date formatting
package utils
