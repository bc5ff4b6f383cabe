// Package services holds cross-cutting helpers shared by the pipeline stages:
// the stage-tagged error taxonomy and context annotations used for logging
// correlation.
package services
