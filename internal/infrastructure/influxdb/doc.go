// Package influxdb writes medication time series to InfluxDB v2.
//
// Three measurements are recorded:
//
//	medication_dose          one point per recorded dose
//	medication_inventory     stock level after every state change
//	medication_notification  one point per notification sent
//
// Writes are asynchronous and batched; failures surface through the
// callback set with SetOnError. The client is optional: when the
// influxdb section is disabled, Connect returns ErrDisabled and callers
// run without it.
package influxdb
