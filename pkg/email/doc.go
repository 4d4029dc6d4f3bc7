// Package email sends transactional emails through Postmark, or writes them
// to disk with DevSender during local development. Messages carry
// pre-rendered HTML; see the templates subpackage for rendering templ
// components.
package email
