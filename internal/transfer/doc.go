// Package transfer moves inventory data in and out of the engine as JSON
// and CSV documents.
//
// Imports are applied in dependency order (categories, then items, then
// reminders) so every reference resolves. A record that fails is listed in
// the returned report and the rest of the batch continues.
package transfer
