package vision

// extractionPrompt is the fixed instruction sent with every screenshot. The
// model is asked for a strict JSON object so the reply can be parsed
// mechanically; the text-mining fallback covers replies that ignore this.
const extractionPrompt = `Analyze this product page screenshot and extract the following information in JSON format:

{
    "name": "product name",
    "sku": "product model/SKU if visible",
    "price": "numerical price value only (no currency symbols)",
    "currency": "currency symbol or code",
    "availability": "in stock/out of stock/unknown",
    "seller": "seller name if visible",
    "description": "brief product description",
    "specifications": "key specifications if visible",
    "images_count": "number of product images visible",
    "rating": "product rating if visible",
    "reviews_count": "number of reviews if visible"
}

Important rules:
- Extract only the main product price (not shipping, tax, etc.)
- For price, return only numbers (e.g., "299000" not "299,000")
- If information is not visible, use "unknown" or null
- Be accurate and conservative in extraction
- Focus on the primary product being displayed
- Respond with the JSON object only, no surrounding prose`
