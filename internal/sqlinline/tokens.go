package sqlinline

// The credit ledger persists one row per user in a flat key-value table so the
// storage layout stays interchangeable with the SQLite fallback.

const QSelectKV = `--sql afe08fd7-d56f-468d-9555-bfb1f0058bf7
select value
from kv_store
where key = $1::text;
`

const QUpsertKV = `--sql 1d4ec244-2d7d-4ceb-91ff-2fd047613ed1
insert into kv_store (key, value, updated_at)
values ($1::text, $2::text, now())
on conflict (key) do update set
    value = excluded.value,
    updated_at = now();
`

const QDeleteKV = `--sql eb00f7c7-8081-461c-a169-0feaa66e09f1
delete from kv_store
where key = $1::text;
`
