// Package logger is the structured logger used across the backend layer.
//
// It wraps zerolog with a small field-map API:
//
//	log := logger.Get("provisioning")
//	log.Info("profile created", logger.Fields(logger.FieldUserID, id))
package logger
