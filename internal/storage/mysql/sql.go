package mysql

const upsertHotelSQL = `
INSERT INTO hotels
  (id, name, location, description, amenities, average_rating, image_url)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name           = VALUES(name),
  location       = VALUES(location),
  description    = VALUES(description),
  amenities      = VALUES(amenities),
  average_rating = VALUES(average_rating),
  image_url      = VALUES(image_url),
  updated_at     = CURRENT_TIMESTAMP
`

const upsertRoomTypeSQL = `
INSERT INTO room_types
  (hotel_id, id, name, description, capacity, max_guests, price_per_night, amenities)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name            = VALUES(name),
  description     = VALUES(description),
  capacity        = VALUES(capacity),
  max_guests      = VALUES(max_guests),
  price_per_night = VALUES(price_per_night),
  amenities       = VALUES(amenities)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const hotelColumns = `h.id, h.name, h.location, h.description, h.amenities, h.average_rating, h.image_url`

const getHotelSQL = `SELECT ` + hotelColumns + ` FROM hotels h WHERE h.id = ?`

// location_key is LOWER(TRIM(location)); callers pass the normalized value.
const findHotelsByLocationSQL = `SELECT ` + hotelColumns + ` FROM hotels h WHERE h.location_key = ? ORDER BY h.id`

const listHotelsSQL = `SELECT ` + hotelColumns + ` FROM hotels h ORDER BY h.id LIMIT ?`

// roomTypesForHotelsPrefix is completed with an IN (...) list by the repo.
const roomTypesForHotelsPrefix = `
SELECT hotel_id, id, name, description, capacity, max_guests, price_per_night, amenities
FROM room_types
WHERE hotel_id IN (`

const bookingColumns = `id, hotel_id, room_type_id, user_id, check_in, check_out, status, guests, total_price, created_at, cancelled_at`

// Half-open overlap: existing.check_in < end AND existing.check_out > start.
const listConfirmedOverlappingSQL = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE hotel_id = ? AND room_type_id = ? AND status = 'confirmed'
  AND check_in < ? AND check_out > ?
ORDER BY id`

const countConfirmedOverlappingSQL = `
SELECT COUNT(*)
FROM bookings
WHERE hotel_id = ? AND room_type_id = ? AND status = 'confirmed'
  AND check_in < ? AND check_out > ?`

const getBookingSQL = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

const getBookingForUpdateSQL = getBookingSQL + ` FOR UPDATE`

const listBookingsByUserSQL = `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id`

// -----------------------------------------------------------------------------
// BOOKING WRITES
// -----------------------------------------------------------------------------

// Row lock on the room type serializes concurrent inserts for it.
const lockRoomTypeSQL = `SELECT capacity FROM room_types WHERE hotel_id = ? AND id = ? FOR UPDATE`

const insertBookingSQL = `
INSERT INTO bookings
  (id, hotel_id, room_type_id, user_id, check_in, check_out, status, guests, total_price, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateBookingStatusSQL = `UPDATE bookings SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`

// -----------------------------------------------------------------------------
// RATINGS
// -----------------------------------------------------------------------------

const listRatingsSQL = `SELECT user_id, hotel_id, score, created_at FROM ratings WHERE hotel_id = ? ORDER BY id`

const insertRatingSQL = `INSERT INTO ratings (hotel_id, user_id, score, created_at) VALUES (?, ?, ?, ?)`

const hotelExistsSQL = `SELECT 1 FROM hotels WHERE id = ?`
