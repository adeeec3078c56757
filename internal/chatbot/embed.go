package chatbot

import (
	"fmt"
	"net/url"
)

const embedTemplate = `<script>
  (function() {
    var chatbotId = '%s';
    var script = document.createElement('script');
    script.src = '%s?id=' + encodeURIComponent(chatbotId);
    script.async = true;
    script.onload = function() {
      if (window.initChatbot) {
        window.initChatbot(chatbotId);
      }
    };
    document.head.appendChild(script);
  })();
</script>`

// EmbedSnippet builds the integration snippet that loads the widget for the
// chatbot with the given id. The output depends only on its arguments.
func EmbedSnippet(loaderURL, chatbotID string) string {
	return fmt.Sprintf(embedTemplate, url.PathEscape(chatbotID), loaderURL)
}
