// Package audit records changes made through the API.
//
// Every successful service call and every config entry create, delete or
// options update is stored in the audit_logs table together with the
// token subject and role that made it. The API writes records through a
// buffered channel so a slow disk never delays a response.
package audit
