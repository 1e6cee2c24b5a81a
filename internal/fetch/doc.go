// Package fetch retrieves raw document bytes for the json store. It knows
// nothing about JSON; it only maps a location (a file path or an http(s) URL)
// to bytes and reports failures as *TransportError.
package fetch
