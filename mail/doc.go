// Package mail provides a ready [Mailer] implementation for SMTP
// delivery. The engine treats delivery as opaque; this package only
// needs to report success or failure per message.
package mail
