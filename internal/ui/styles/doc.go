// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the morpheus chat
view and CLI output.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. Every status rendered in color also carries a text indicator
such as [OK] or [!].

	theme := styles.NewTheme("auto")
	fmt.Println(theme.UserLabel.Render("You"))
	fmt.Println(theme.SafetyBadges(msg.Annotations))
*/
package styles
