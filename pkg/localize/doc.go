/*
Package localize renders error messages from message bundles.

An error is keyed by an ErrorID, which pairs a stable code with a fallback
template. Templates use "{}" placeholders that are filled positionally; a
placeholder without a matching argument, or with a nil one, renders as "null".

Bundles are keyed by name and locale and loaded from YAML files laid out as
<bundle>/<locale>.yaml, where the locale "root" is the locale-neutral bundle.
Resolution for a given error tries the bundle named by the error, then the
bundle named by the caller's Context, then the raw template. Each bundle lookup
walks the locale from the exact tag through its parents down to root. When
neither bundle is known to the Registry, the rendered message carries a single
trailing blank.

There is no process-wide localization state. The Context is passed explicitly
to Error.Message; Error.Error renders with the default registry in the root
locale.
*/
package localize
