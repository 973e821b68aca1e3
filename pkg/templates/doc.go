// Package templates embeds the starter template folders that saazpay-cli
// copies into a project and that the portal renders by default.
package templates
