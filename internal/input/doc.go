// Package input decodes serialized OS input events (key, mouse button,
// pointer motion, wheel) into typed records and fans them out to registered
// callbacks in registration order.
package input
